package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"catalog-recon/internal/reconcile/model"
)

// State: этап одного прогона сверки.
// idle → analyzing → staged|empty → committing → idle
type State string

const (
	StateIdle       State = "idle"
	StateAnalyzing  State = "analyzing"
	StateStaged     State = "staged"
	StateEmpty      State = "empty"
	StateCommitting State = "committing"
)

// Run хранит предложения одного прогона до подтверждения человеком.
type Run struct {
	mu         sync.Mutex
	// bindMu: привязки одного прогона идут по очереди, индексы unmatched между ними не плывут
	bindMu     sync.Mutex
	id         string
	mode       model.Mode
	state      State
	staged     []model.MatchResult
	unmatched  []model.SheetEntry
	warnings   []string
	createdAt  time.Time
	lastCommit *model.CommitResult
}

// RunView: снимок прогона для отдачи наружу.
type RunView struct {
	ID         string              `json:"id"`
	Mode       model.Mode          `json:"mode"`
	State      State               `json:"state"`
	Staged     []model.MatchResult `json:"staged"`
	Unmatched  []model.SheetEntry  `json:"unmatched"`
	Warnings   []string            `json:"warnings"`
	CreatedAt  time.Time           `json:"createdAt"`
	LastCommit *model.CommitResult `json:"lastCommit,omitempty"`
}

func newRun(mode model.Mode) *Run {
	return &Run{
		id:        uuid.NewString(),
		mode:      mode,
		state:     StateAnalyzing,
		staged:    []model.MatchResult{},
		unmatched: []model.SheetEntry{},
		warnings:  []string{},
		createdAt: time.Now(),
	}
}

func (r *Run) ID() string { return r.id }

func (r *Run) Mode() model.Mode { return r.mode }

func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) View() RunView {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := RunView{
		ID:        r.id,
		Mode:      r.mode,
		State:     r.state,
		Staged:    append([]model.MatchResult{}, r.staged...),
		Unmatched: append([]model.SheetEntry{}, r.unmatched...),
		Warnings:  append([]string{}, r.warnings...),
		CreatedAt: r.createdAt,
	}
	if r.lastCommit != nil {
		lc := *r.lastCommit
		v.LastCommit = &lc
	}
	return v
}

// stage завершает анализ.
func (r *Run) stage(res model.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staged = res.Staged
	r.unmatched = res.Unmatched
	r.warnings = res.Warnings
	if len(r.staged) == 0 && len(r.unmatched) == 0 {
		r.state = StateEmpty
		return
	}
	r.state = StateStaged
}

// редактировать можно только после анализа и не во время записи
func (r *Run) editable() error {
	switch r.state {
	case StateStaged, StateIdle:
		return nil
	default:
		return fmt.Errorf("%w: %s", model.ErrInvalidState, r.state)
	}
}

func (r *Run) indexOf(productID int64) int {
	for i := range r.staged {
		if r.staged[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (r *Run) SetSelected(productID int64, selected bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.editable(); err != nil {
		return err
	}
	i := r.indexOf(productID)
	if i < 0 {
		return fmt.Errorf("%w: %d", model.ErrNotStaged, productID)
	}
	r.staged[i].Selected = selected
	return nil
}

// EditValue: ручная правка предложенного значения.
func (r *Run) EditValue(productID, value int64) error {
	if value <= 0 {
		return model.ErrInvalidValue
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.editable(); err != nil {
		return err
	}
	i := r.indexOf(productID)
	if i < 0 {
		return fmt.Errorf("%w: %d", model.ErrNotStaged, productID)
	}
	if r.staged[i].ProposedValue != value {
		r.staged[i].ProposedValue = value
		r.staged[i].ManuallyEdited = true
	}
	return nil
}

// canBind проверяет привязку до похода в каталог, чтобы не переименовать товар зря,
// и отдаёт снимок строки для bind.
func (r *Run) canBind(index int) (model.SheetEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.editable(); err != nil {
		return model.SheetEntry{}, err
	}
	if index < 0 || index >= len(r.unmatched) {
		return model.SheetEntry{}, fmt.Errorf("%w: %d", model.ErrEntryNotFound, index)
	}
	return r.unmatched[index], nil
}

// unmatchedPos: позиция строки entry; сначала index, потом поиск по значению.
func (r *Run) unmatchedPos(index int, entry model.SheetEntry) int {
	if index >= 0 && index < len(r.unmatched) && r.unmatched[index] == entry {
		return index
	}
	for i, e := range r.unmatched {
		if e == entry {
			return i
		}
	}
	return -1
}

// bind переводит снятую в canBind строку в staged для выбранного товара.
// Если строку уже привязали, ErrEntryNotFound.
func (r *Run) bind(index int, entry model.SheetEntry, p model.Product) (model.MatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.editable(); err != nil {
		return model.MatchResult{}, err
	}
	index = r.unmatchedPos(index, entry)
	if index < 0 {
		return model.MatchResult{}, fmt.Errorf("%w: %q already bound", model.ErrEntryNotFound, entry.Name)
	}
	mr := model.MatchResult{
		ProductID:     p.ID,
		ProductName:   p.Name,
		Brand:         p.Brand,
		CurrentValue:  r.mode.ValueOf(p),
		ProposedValue: entry.Value,
		Selected:      true,
		SheetName:     entry.Name,
		Method:        model.MethodManual,
		Score:         exactScore,
	}
	if i := r.indexOf(p.ID); i >= 0 {
		r.staged[i] = mr
	} else {
		r.staged = append(r.staged, mr)
	}
	r.unmatched = append(r.unmatched[:index:index], r.unmatched[index+1:]...)
	r.state = StateStaged
	return mr, nil
}

// beginCommit переводит прогон в committing и отдаёт копию строк.
func (r *Run) beginCommit() ([]model.MatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateCommitting {
		return nil, model.ErrCommitInProgress
	}
	if err := r.editable(); err != nil {
		return nil, err
	}
	r.state = StateCommitting
	return append([]model.MatchResult{}, r.staged...), nil
}

// abortCommit возвращает прогон в staged, если запись так и не началась.
func (r *Run) abortCommit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateCommitting {
		r.state = StateStaged
	}
}

// finishCommit убирает записанные строки; упавшие остаются выбранными для повтора.
func (r *Run) finishCommit(sent []model.MatchResult, res model.CommitResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	failed := make(map[int64]bool, len(res.Errors))
	for _, e := range res.Errors {
		failed[e.ProductID] = true
	}
	applied := make(map[int64]bool, len(sent))
	for _, s := range sent {
		if s.Selected && !failed[s.ProductID] {
			applied[s.ProductID] = true
		}
	}
	kept := r.staged[:0:0]
	for _, s := range r.staged {
		if applied[s.ProductID] {
			continue
		}
		if failed[s.ProductID] {
			s.Selected = true
		}
		kept = append(kept, s)
	}
	r.staged = kept
	r.lastCommit = &res
	r.state = StateIdle
}
