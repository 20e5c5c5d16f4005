package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sarchlab/savestate/hooking"
)

// A Contributor owns one fragment key. It receives HookPosCollect and
// HookPosRestore signals whose HookCtx.Item is a FragmentMap and whose
// HookCtx.Detail is the save name.
type Contributor interface {
	hooking.Hook

	// FragmentKey returns the statically assigned key of the contributor.
	FragmentKey() string
}

// Report summarizes the contributor side of a save or load. Contributor
// failures never abort the operation; they are collected here.
type Report struct {
	Save     string
	Pos      *hooking.HookPos
	Failures []*hooking.HookError

	// Stale is set when a load found the save in memory but not in the
	// stored snapshot. Restore then ran with an empty fragment map.
	Stale bool
}

// OK reports whether every contributor succeeded.
func (r Report) OK() bool {
	return len(r.Failures) == 0
}

// Err returns the contributor failures as one error, or nil.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}

	return &hooking.DispatchError{Pos: r.Pos, Failures: r.Failures}
}

// SaveInfo is a read-only summary of a save record.
type SaveInfo struct {
	Name       string
	CreatedAt  time.Time
	ModifiedAt time.Time
	Keys       []string
}

// Manager creates, populates, persists and restores named saves. It raises
// HookPosCollect and HookPosRestore on its hooks. It is not safe for
// concurrent use.
type Manager struct {
	hooking.HookableBase

	registry *Registry
	storage  Storage
	codec    *SnapshotCodec
	logger   *slog.Logger
	now      func() time.Time

	contributors map[string]Contributor
}

// Name returns the name of the manager.
func (m *Manager) Name() string {
	return "SaveManager"
}

// RegisterContributor subscribes a contributor to collect and restore
// signals. Registering two contributors with the same key panics.
func (m *Manager) RegisterContributor(c Contributor) {
	key := c.FragmentKey()

	if _, ok := m.contributors[key]; ok {
		panic("fragment key " + key + " already registered")
	}

	m.contributors[key] = c
	m.AcceptHook(c)
}

// ContributorKeys returns the keys of all registered contributors, sorted.
func (m *Manager) ContributorKeys() []string {
	keys := make([]string, 0, len(m.contributors))
	for k := range m.contributors {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Open replaces the registry with the stored snapshot, if there is one. A
// storage that has never been written leaves the registry empty.
func (m *Manager) Open() error {
	records, err := m.readSnapshot()
	if errors.Is(err, ErrNoSnapshot) {
		m.logger.Debug("no stored snapshot", "location", m.storage.Location())
		return nil
	}

	if err != nil {
		return err
	}

	m.registry.ReplaceAll(records)
	m.logger.Debug("registry opened",
		"location", m.storage.Location(), "saves", m.registry.Names())

	return nil
}

// NewSave creates a save and immediately saves into it. It returns
// ErrDuplicateName, without side effects, if the name is taken. If the save
// cannot be written the new record is discarded again.
func (m *Manager) NewSave(name string) (Report, error) {
	rec, err := m.registry.Create(name, m.now())
	if err != nil {
		return Report{Save: name}, err
	}

	report, err := m.save(rec)
	if err != nil {
		m.registry.Remove(name)
		return report, err
	}

	return report, nil
}

// Save collects the state of every contributor into the named save and then
// writes the whole registry to storage. It returns ErrUnknownSave if the name
// is not known. If the write fails the in-memory save is left as it was.
func (m *Manager) Save(name string) (Report, error) {
	rec, ok := m.registry.Get(name)
	if !ok {
		return Report{Save: name}, fmt.Errorf("%w: %q", ErrUnknownSave, name)
	}

	return m.save(rec)
}

func (m *Manager) save(rec *SaveRecord) (Report, error) {
	staged := rec.Fragments.Clone()
	report := m.dispatch(hooking.HookPosCollect, rec.Name, staged)

	pending := *rec
	pending.Fragments = staged
	pending.ModifiedAt = m.now()

	err := m.persist(rec, &pending)
	if err != nil {
		m.logger.Error("save failed", "save", rec.Name, "error", err)
		return report, err
	}

	*rec = pending

	m.logger.Info("save written",
		"save", rec.Name,
		"fragments", len(rec.Fragments),
		"saves", m.registry.Len())

	return report, nil
}

func (m *Manager) persist(replaced, pending *SaveRecord) error {
	records := make([]*SaveRecord, 0, m.registry.Len())
	for _, rec := range m.registry.Records() {
		if rec == replaced {
			rec = pending
		}

		records = append(records, rec)
	}

	blob, err := m.codec.Encode(records)
	if err != nil {
		return &StorageError{Op: "encode", Path: m.storage.Location(), Err: err}
	}

	err = m.storage.Write(blob)
	if err != nil {
		return &StorageError{Op: "write", Path: m.storage.Location(), Err: err}
	}

	return nil
}

// Load reads the stored snapshot, replaces the whole registry with it, and
// asks every contributor to restore its state from the named save. It returns
// ErrUnknownSave, before touching storage, if the name is not known. A
// storage or decoding failure leaves the registry unchanged.
func (m *Manager) Load(name string) (Report, error) {
	if _, ok := m.registry.Get(name); !ok {
		return Report{Save: name}, fmt.Errorf("%w: %q", ErrUnknownSave, name)
	}

	records, err := m.readSnapshot()
	if err != nil {
		m.logger.Error("load failed", "save", name, "error", err)
		return Report{Save: name}, err
	}

	m.registry.ReplaceAll(records)

	fragments, ok := m.registry.Fragments(name)
	if !ok {
		m.logger.Warn("save missing from stored snapshot, restoring nothing",
			"save", name, "location", m.storage.Location())

		fragments = make(FragmentMap)
	}

	report := m.dispatch(hooking.HookPosRestore, name, fragments.Clone())
	report.Stale = !ok

	m.logger.Info("save loaded", "save", name, "saves", m.registry.Len())

	return report, nil
}

func (m *Manager) readSnapshot() ([]*SaveRecord, error) {
	blob, err := m.storage.Read()
	if err != nil {
		return nil, &StorageError{Op: "read", Path: m.storage.Location(), Err: err}
	}

	records, err := m.codec.Decode(blob)
	if err != nil {
		return nil, &StorageError{Op: "decode", Path: m.storage.Location(), Err: err}
	}

	return records, nil
}

func (m *Manager) dispatch(
	pos *hooking.HookPos,
	name string,
	fragments FragmentMap,
) Report {
	report := Report{Save: name, Pos: pos}

	err := m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    pos,
		Item:   fragments,
		Detail: name,
	})

	var dispatchErr *hooking.DispatchError
	if errors.As(err, &dispatchErr) {
		report.Failures = dispatchErr.Failures
	}

	for _, f := range report.Failures {
		m.logger.Warn("contributor failed",
			"signal", pos.Name,
			"save", name,
			"contributor", f.HookName(),
			"panicked", f.Panicked,
			"error", f.Err)
	}

	return report
}

// Has reports whether a save with the given name is known.
func (m *Manager) Has(name string) bool {
	_, ok := m.registry.Get(name)
	return ok
}

// List summarizes every save in creation order.
func (m *Manager) List() []SaveInfo {
	infos := make([]SaveInfo, 0, m.registry.Len())
	for _, rec := range m.registry.Records() {
		infos = append(infos, SaveInfo{
			Name:       rec.Name,
			CreatedAt:  rec.CreatedAt,
			ModifiedAt: rec.ModifiedAt,
			Keys:       rec.Fragments.Keys(),
		})
	}

	return infos
}

// Record returns a deep copy of the named save.
func (m *Manager) Record(name string) (SaveRecord, bool) {
	rec, ok := m.registry.Get(name)
	if !ok {
		return SaveRecord{}, false
	}

	return *rec.clone(), true
}

// Location returns where the registry is stored.
func (m *Manager) Location() string {
	return m.storage.Location()
}
