package persistence_test

import (
	"bytes"
	"errors"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/savestate/hooking"
	"github.com/sarchlab/savestate/persistence"
)

// keyedContributor writes value under key on collect and remembers what it
// read on restore.
type keyedContributor struct {
	key      string
	value    []byte
	restored []byte
	restores int
	failWith error
	seen     persistence.FragmentMap
}

func (c *keyedContributor) FragmentKey() string {
	return c.key
}

func (c *keyedContributor) Func(ctx hooking.HookCtx) error {
	fragments := ctx.Item.(persistence.FragmentMap)
	c.seen = fragments

	switch ctx.Pos {
	case hooking.HookPosCollect:
		fragments.Put(c.key, c.value)
	case hooking.HookPosRestore:
		c.restores++
		if data, ok := fragments.Get(c.key); ok {
			c.restored = data
		}
	}

	return c.failWith
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

var _ = Describe("Manager", func() {
	var (
		storage *persistence.MemoryStorage
		clock   *fakeClock
		m       *persistence.Manager
		alpha   *keyedContributor
		beta    *keyedContributor
	)

	newManager := func(s persistence.Storage) *persistence.Manager {
		return persistence.MakeBuilder().
			WithStorage(s).
			WithTimeSource(clock.now).
			Build()
	}

	BeforeEach(func() {
		storage = persistence.NewMemoryStorage()
		clock = &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		m = newManager(storage)

		alpha = &keyedContributor{key: "alpha", value: []byte{1, 2, 3}}
		beta = &keyedContributor{key: "beta", value: []byte{0xff}}
		m.RegisterContributor(alpha)
		m.RegisterContributor(beta)
	})

	It("should register contributors by key", func() {
		Expect(m.ContributorKeys()).To(Equal([]string{"alpha", "beta"}))
		Expect(m.NumHooks()).To(Equal(2))
	})

	It("should panic on a duplicated fragment key", func() {
		Expect(func() {
			m.RegisterContributor(&keyedContributor{key: "alpha"})
		}).To(Panic())
	})

	Context("new save", func() {
		It("should create, collect and persist", func() {
			report, err := m.NewSave("A")

			Expect(err).NotTo(HaveOccurred())
			Expect(report.OK()).To(BeTrue())
			Expect(report.Pos).To(BeIdenticalTo(hooking.HookPosCollect))

			rec, ok := m.Record("A")
			Expect(ok).To(BeTrue())
			Expect(rec.Fragments).To(Equal(persistence.FragmentMap{
				"alpha": {1, 2, 3},
				"beta":  {0xff},
			}))

			_, err = storage.Read()
			Expect(err).NotTo(HaveOccurred())
		})

		It("should refuse a duplicated name without side effects", func() {
			_, err := m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())
			before, _ := storage.Read()
			recBefore, _ := m.Record("A")

			alpha.value = []byte{9}
			_, err = m.NewSave("A")

			Expect(errors.Is(err, persistence.ErrDuplicateName)).To(BeTrue())
			Expect(m.List()).To(HaveLen(1))
			after, _ := storage.Read()
			Expect(after).To(Equal(before))
			recAfter, _ := m.Record("A")
			Expect(recAfter).To(Equal(recBefore))
		})
	})

	Context("save", func() {
		It("should fail for an unknown save", func() {
			_, err := m.Save("ghost")

			Expect(errors.Is(err, persistence.ErrUnknownSave)).To(BeTrue())
			_, err = storage.Read()
			Expect(errors.Is(err, persistence.ErrNoSnapshot)).To(BeTrue())
		})

		It("should overwrite the contributor fragment and bump the timestamp", func() {
			_, err := m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())
			first, _ := m.Record("A")

			alpha.value = []byte{4}
			_, err = m.Save("A")
			Expect(err).NotTo(HaveOccurred())

			second, _ := m.Record("A")
			Expect(second.Fragments["alpha"]).To(Equal([]byte{4}))
			Expect(second.Fragments["beta"]).To(Equal([]byte{0xff}))
			Expect(second.CreatedAt).To(Equal(first.CreatedAt))
			Expect(second.ModifiedAt).To(BeTemporally(">", first.ModifiedAt))
		})

		It("should produce identical fragments when nothing changed", func() {
			_, err := m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())
			first, _ := m.Record("A")

			_, err = m.Save("A")
			Expect(err).NotTo(HaveOccurred())
			second, _ := m.Record("A")

			Expect(second.Fragments).To(Equal(first.Fragments))
		})

		It("should keep fragments of contributors that did not write", func() {
			_, err := m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())

			lazy := persistence.MakeBuilder().WithStorage(storage).Build()
			Expect(lazy.Open()).To(Succeed())
			_, err = lazy.Save("A")
			Expect(err).NotTo(HaveOccurred())

			rec, _ := lazy.Record("A")
			Expect(rec.Fragments).To(HaveKeyWithValue("alpha", []byte{1, 2, 3}))
		})

		It("should persist every save, not only the one being saved", func() {
			_, err := m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())

			alpha.value = []byte{7}
			_, err = m.NewSave("B")
			Expect(err).NotTo(HaveOccurred())

			blob, err := storage.Read()
			Expect(err).NotTo(HaveOccurred())
			records, err := persistence.NewSnapshotCodec().Decode(blob)
			Expect(err).NotTo(HaveOccurred())

			Expect(records).To(HaveLen(2))
			Expect(records[0].Name).To(Equal("A"))
			Expect(records[0].Fragments["alpha"]).To(Equal([]byte{1, 2, 3}))
			Expect(records[1].Name).To(Equal("B"))
			Expect(records[1].Fragments["alpha"]).To(Equal([]byte{7}))
		})

		It("should report a failing contributor and still save the others", func() {
			alpha.failWith = errors.New("cannot encode")

			report, err := m.NewSave("A")

			Expect(err).NotTo(HaveOccurred())
			Expect(report.OK()).To(BeFalse())
			Expect(report.Failures).To(HaveLen(1))
			Expect(report.Failures[0].Hook).To(BeIdenticalTo(alpha))
			Expect(errors.Is(report.Err(), alpha.failWith)).To(BeTrue())

			rec, _ := m.Record("A")
			Expect(rec.Fragments).To(HaveKey("beta"))
		})

		It("should isolate contributors writing different keys", func() {
			_, err := m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())

			beta.value = []byte{1, 1, 1, 1}
			_, err = m.Save("A")
			Expect(err).NotTo(HaveOccurred())

			rec, _ := m.Record("A")
			Expect(rec.Fragments["alpha"]).To(Equal([]byte{1, 2, 3}))
			Expect(rec.Fragments["beta"]).To(Equal([]byte{1, 1, 1, 1}))
		})
	})

	Context("load", func() {
		It("should fail for an unknown save without reading storage", func() {
			mockCtrl := gomock.NewController(GinkgoT())
			mockStorage := NewMockStorage(mockCtrl)
			mockStorage.EXPECT().Location().Return("mock").AnyTimes()
			m := newManager(mockStorage)

			_, err := m.Load("ghost")

			Expect(errors.Is(err, persistence.ErrUnknownSave)).To(BeTrue())
			Expect(m.List()).To(BeEmpty())
		})

		It("should restore every contributor from its own key", func() {
			_, err := m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())

			report, err := m.Load("A")

			Expect(err).NotTo(HaveOccurred())
			Expect(report.OK()).To(BeTrue())
			Expect(report.Stale).To(BeFalse())
			Expect(alpha.restored).To(Equal([]byte{1, 2, 3}))
			Expect(beta.restored).To(Equal([]byte{0xff}))
		})

		It("should round trip through a fresh manager", func() {
			_, err := m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())
			saved, _ := m.Record("A")

			fresh := newManager(storage)
			gamma := &keyedContributor{key: "alpha"}
			fresh.RegisterContributor(gamma)
			Expect(fresh.Open()).To(Succeed())

			_, err = fresh.Load("A")

			Expect(err).NotTo(HaveOccurred())
			Expect(gamma.restored).To(Equal([]byte{1, 2, 3}))
			loaded, _ := fresh.Record("A")
			Expect(loaded.Fragments).To(Equal(saved.Fragments))
		})

		It("should log the names of the opened saves", func() {
			_, err := m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())
			_, err = m.NewSave("B")
			Expect(err).NotTo(HaveOccurred())

			buf := &bytes.Buffer{}
			logged := persistence.MakeBuilder().
				WithStorage(storage).
				WithLogger(slog.New(slog.NewTextHandler(buf,
					&slog.HandlerOptions{Level: slog.LevelDebug}))).
				Build()

			Expect(logged.Open()).To(Succeed())
			Expect(buf.String()).To(ContainSubstring("registry opened"))
			Expect(buf.String()).To(ContainSubstring(`saves="[A B]"`))
		})

		It("should replace the whole registry with the stored one", func() {
			_, err := m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())

			other := newManager(storage)
			Expect(other.Open()).To(Succeed())
			_, err = other.NewSave("C")
			Expect(err).NotTo(HaveOccurred())

			_, err = m.Load("A")
			Expect(err).NotTo(HaveOccurred())

			names := []string{}
			for _, info := range m.List() {
				names = append(names, info.Name)
			}
			Expect(names).To(Equal([]string{"A", "C"}))
		})

		It("should report a stale save and leave contributors untouched", func() {
			onlyB := persistence.NewMemoryStorage()
			writer := newManager(onlyB)
			_, err := writer.NewSave("B")
			Expect(err).NotTo(HaveOccurred())

			m := newManager(onlyB)
			m.RegisterContributor(alpha)
			Expect(m.Open()).To(Succeed())
			_, err = m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())
			blob, _ := onlyB.Read()

			// Another process overwrites the file without A.
			Expect(onlyB.Write(mustWithout(blob, "A"))).To(Succeed())

			alpha.restored = []byte{42}
			report, err := m.Load("A")

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Stale).To(BeTrue())
			Expect(alpha.restores).To(Equal(1))
			Expect(alpha.seen).To(BeEmpty())
			Expect(alpha.restored).To(Equal([]byte{42}))
			Expect(m.Has("A")).To(BeFalse())
			Expect(m.Has("B")).To(BeTrue())
		})

		It("should keep the registry when storage cannot be decoded", func() {
			_, err := m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())
			Expect(storage.Write([]byte("garbage"))).To(Succeed())

			_, err = m.Load("A")

			var storageErr *persistence.StorageError
			Expect(errors.As(err, &storageErr)).To(BeTrue())
			Expect(storageErr.Op).To(Equal("decode"))
			Expect(errors.Is(err, persistence.ErrStorage)).To(BeTrue())
			Expect(m.Has("A")).To(BeTrue())
			Expect(alpha.restores).To(BeZero())
		})

		It("should continue restoring after a contributor fails", func() {
			_, err := m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())
			alpha.failWith = errors.New("corrupt")

			report, err := m.Load("A")

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Failures).To(HaveLen(1))
			Expect(beta.restored).To(Equal([]byte{0xff}))
		})

		It("should not let a restoring contributor alter the registry", func() {
			_, err := m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())

			vandal := hooking.NewHookFunc("vandal", func(ctx hooking.HookCtx) error {
				ctx.Item.(persistence.FragmentMap).Put("alpha", []byte{0})
				return nil
			})
			m.AcceptHook(vandal)

			_, err = m.Load("A")
			Expect(err).NotTo(HaveOccurred())

			rec, _ := m.Record("A")
			Expect(rec.Fragments["alpha"]).To(Equal([]byte{1, 2, 3}))
		})
	})

	Context("storage failures", func() {
		var (
			mockCtrl    *gomock.Controller
			mockStorage *MockStorage
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			mockStorage = NewMockStorage(mockCtrl)
			mockStorage.EXPECT().Location().Return("mock").AnyTimes()

			m = newManager(mockStorage)
			m.RegisterContributor(alpha)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should discard a new save that could not be written", func() {
			mockStorage.EXPECT().Write(gomock.Any()).Return(errors.New("disk full"))

			_, err := m.NewSave("A")

			Expect(errors.Is(err, persistence.ErrStorage)).To(BeTrue())
			Expect(m.Has("A")).To(BeFalse())
		})

		It("should leave the save unchanged when the write fails", func() {
			mockStorage.EXPECT().Write(gomock.Any()).Return(nil)
			_, err := m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())
			before, _ := m.Record("A")

			alpha.value = []byte{5, 5}
			mockStorage.EXPECT().Write(gomock.Any()).Return(errors.New("disk full"))
			_, err = m.Save("A")

			var storageErr *persistence.StorageError
			Expect(errors.As(err, &storageErr)).To(BeTrue())
			Expect(storageErr.Op).To(Equal("write"))
			Expect(storageErr.Path).To(Equal("mock"))

			after, _ := m.Record("A")
			Expect(after).To(Equal(before))
		})

		It("should report a read failure distinctly from an unknown save", func() {
			mockStorage.EXPECT().Write(gomock.Any()).Return(nil)
			_, err := m.NewSave("A")
			Expect(err).NotTo(HaveOccurred())

			mockStorage.EXPECT().Read().Return(nil, errors.New("permission denied"))
			_, err = m.Load("A")

			Expect(errors.Is(err, persistence.ErrStorage)).To(BeTrue())
			Expect(errors.Is(err, persistence.ErrUnknownSave)).To(BeFalse())
			Expect(m.Has("A")).To(BeTrue())
		})

		It("should treat missing storage as an empty registry on open", func() {
			mockStorage.EXPECT().Read().Return(nil, persistence.ErrNoSnapshot)

			Expect(m.Open()).To(Succeed())
			Expect(m.List()).To(BeEmpty())
		})

		It("should fail to open a corrupt snapshot", func() {
			mockStorage.EXPECT().Read().Return([]byte{0xff, 0x00}, nil)

			err := m.Open()

			Expect(errors.Is(err, persistence.ErrStorage)).To(BeTrue())
		})
	})
})

func mustWithout(blob []byte, name string) []byte {
	codec := persistence.NewSnapshotCodec()

	records, err := codec.Decode(blob)
	Expect(err).NotTo(HaveOccurred())

	kept := records[:0]
	for _, rec := range records {
		if rec.Name != name {
			kept = append(kept, rec)
		}
	}

	out, err := codec.Encode(kept)
	Expect(err).NotTo(HaveOccurred())

	return out
}
