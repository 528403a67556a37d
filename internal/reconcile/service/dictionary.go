package service

// Rule: любое из слов/фраз Words (целым словом) заменяется на Replace.
type Rule struct {
	Words   []string `json:"words" mapstructure:"words"`
	Replace string   `json:"replace" mapstructure:"replace"`
}

// Dictionary: неизменяемые таблицы нормализации и токенизации.
// Собирается один раз и передаётся в NewNormalizer/NewTokenizer.
type Dictionary struct {
	Synonyms      []Rule
	CrossLanguage []Rule
	DoorWords     []string
	Accessories   []string
	Stopwords     []string
}

// WithSynonyms добавляет правила в конец стадии синонимов.
func (d Dictionary) WithSynonyms(extra ...Rule) Dictionary {
	syn := make([]Rule, 0, len(d.Synonyms)+len(extra))
	syn = append(syn, d.Synonyms...)
	syn = append(syn, extra...)
	d.Synonyms = syn
	return d
}

// DefaultDictionary: словарь мебельного ритейла (испанский/португальский).
func DefaultDictionary() Dictionary {
	return Dictionary{
		Synonyms: []Rule{
			// материалы
			{Words: []string{"EUCALYPTO", "EUCALIPTUS", "EUCALYPTUS", "EUCALITO"}, Replace: "EUCALIPTO"},
			{Words: []string{"MADERA"}, Replace: "MADEIRA"},
			{Words: []string{"MELAMINA", "MELAMINICO"}, Replace: "MELAMINA"},
			// множественное → единственное
			{Words: []string{"ROUPEIROS"}, Replace: "ROUPEIRO"},
			{Words: []string{"ROPEROS"}, Replace: "ROPERO"},
			{Words: []string{"CRIADOS MUDOS", "CRIADOS MUDO"}, Replace: "CRIADO MUDO"},
			{Words: []string{"CABECEIRAS"}, Replace: "CABECEIRA"},
			{Words: []string{"CABECEROS"}, Replace: "CABECERO"},
			{Words: []string{"COMODAS"}, Replace: "COMODA"},
			{Words: []string{"CAJONERAS"}, Replace: "CAJONERA"},
			{Words: []string{"PENTEADEIRAS"}, Replace: "PENTEADEIRA"},
			{Words: []string{"TOCADORES"}, Replace: "TOCADOR"},
			{Words: []string{"ESTANTES"}, Replace: "ESTANTE"},
			{Words: []string{"CAMAS"}, Replace: "CAMA"},
			{Words: []string{"MESAS"}, Replace: "MESA"},
			{Words: []string{"MESITAS"}, Replace: "MESITA"},
			{Words: []string{"SAPATEIRAS"}, Replace: "SAPATEIRA"},
		},
		CrossLanguage: []Rule{
			// "с зеркалом" вырезается только с предлогом; само ESPEJO остаётся названием товара
			{Words: []string{
				"CON ESPEJO", "CON ESPEJOS", "COM ESPELHO", "COM ESPELHOS",
				"C ESPEJO", "C ESPEJOS", "C ESPELHO", "C ESPELHOS", "WITH MIRROR", "WITH MIRRORS",
			}, Replace: ""},
			// прикроватная тумба; до изголовья, иначе "MESA DE CABECERA" станет изголовьем
			{Words: []string{
				"MESA DE LUZ", "MESITA DE LUZ", "MESA DE NOCHE", "MESITA DE NOCHE",
				"MESA DE CABECERA", "MESITA DE CABECERA", "MESA DE CABECEIRA",
				"MESINHA DE CABECEIRA", "CRIADO MUDO", "NIGHTSTAND",
			}, Replace: "CRIADO MUDO"},
			// изголовье
			{Words: []string{"CABECERO", "CABECERA", "RESPALDO", "CABECEIRA", "HEADBOARD"}, Replace: "CABECEIRA"},
			// шкаф
			{Words: []string{"ROPERO", "GUARDARROPA", "GUARDARROPAS", "PLACARD", "ROUPEIRO", "WARDROBE"}, Replace: "ROUPEIRO"},
			// комод
			{Words: []string{"CAJONERA", "COMODA", "DRESSER"}, Replace: "COMODA"},
			{Words: []string{"TOCADOR", "PENTEADEIRA"}, Replace: "PENTEADEIRA"},
		},
		DoorWords: []string{
			"P", "PT", "PTS", "PTA", "PTAS",
			"PUERTA", "PUERTAS", "PORTA", "PORTAS", "DOOR", "DOORS",
		},
		Accessories: []string{
			"PE", "PES", "PIE", "PIES", "PATA", "PATAS", "PATINHA", "PATINHAS",
			"LED", "LEDS",
		},
		Stopwords: []string{
			"DE", "DEL", "LA", "LAS", "EL", "LOS", "Y", "E", "O", "A",
			"COM", "CON", "PARA", "EM", "EN", "DA", "DO", "DAS", "DOS",
			"UN", "UNA", "UM", "UMA", "SIN", "SEM", "POR", "AL", "AO",
		},
	}
}
