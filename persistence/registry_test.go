package persistence_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/savestate/persistence"
)

var _ = Describe("FragmentMap", func() {
	It("should keep one value per key, last writer wins", func() {
		m := persistence.FragmentMap{}
		m.Put("clock", []byte{1})
		m.Put("clock", []byte{2})

		Expect(m).To(HaveLen(1))
		data, ok := m.Get("clock")
		Expect(ok).To(BeTrue())
		Expect(data).To(Equal([]byte{2}))
	})

	It("should copy the bytes it stores", func() {
		m := persistence.FragmentMap{}
		data := []byte{1, 2, 3}
		m.Put("k", data)
		data[0] = 9

		stored, _ := m.Get("k")
		Expect(stored).To(Equal([]byte{1, 2, 3}))
	})

	It("should clone deeply", func() {
		m := persistence.FragmentMap{}
		m.Put("k", []byte{1})

		c := m.Clone()
		c["k"][0] = 7
		c.Put("other", nil)

		Expect(m["k"]).To(Equal([]byte{1}))
		Expect(m).NotTo(HaveKey("other"))
	})

	It("should list keys sorted", func() {
		m := persistence.FragmentMap{"b": nil, "a": nil}

		Expect(m.Keys()).To(Equal([]string{"a", "b"}))
	})
})

var _ = Describe("Registry", func() {
	var (
		r   *persistence.Registry
		now time.Time
	)

	BeforeEach(func() {
		r = persistence.NewRegistry()
		now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	})

	It("should create empty records", func() {
		rec, err := r.Create("A", now)

		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Name).To(Equal("A"))
		Expect(rec.CreatedAt).To(Equal(now))
		Expect(rec.ModifiedAt).To(Equal(now))
		Expect(rec.Fragments).To(BeEmpty())
		Expect(r.Len()).To(Equal(1))
	})

	It("should refuse duplicated names", func() {
		_, err := r.Create("A", now)
		Expect(err).NotTo(HaveOccurred())

		_, err = r.Create("A", now.Add(time.Hour))

		Expect(errors.Is(err, persistence.ErrDuplicateName)).To(BeTrue())
		Expect(r.Len()).To(Equal(1))
		rec, _ := r.Get("A")
		Expect(rec.CreatedAt).To(Equal(now))
	})

	It("should expose the mutable fragment map", func() {
		_, err := r.Create("A", now)
		Expect(err).NotTo(HaveOccurred())

		fragments, ok := r.Fragments("A")
		Expect(ok).To(BeTrue())
		fragments.Put("k", []byte{1})

		rec, _ := r.Get("A")
		Expect(rec.Fragments).To(HaveKey("k"))

		_, ok = r.Fragments("B")
		Expect(ok).To(BeFalse())
	})

	It("should keep creation order", func() {
		for _, name := range []string{"c", "a", "b"} {
			_, err := r.Create(name, now)
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(r.Names()).To(Equal([]string{"c", "a", "b"}))
	})

	It("should remove records and keep the index consistent", func() {
		for _, name := range []string{"a", "b", "c"} {
			_, err := r.Create(name, now)
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(r.Remove("a")).To(BeTrue())
		Expect(r.Remove("a")).To(BeFalse())

		rec, ok := r.Get("c")
		Expect(ok).To(BeTrue())
		Expect(rec.Name).To(Equal("c"))
		Expect(r.Names()).To(Equal([]string{"b", "c"}))
	})

	It("should replace all records", func() {
		_, err := r.Create("old", now)
		Expect(err).NotTo(HaveOccurred())

		r.ReplaceAll([]*persistence.SaveRecord{
			{Name: "x"},
			{Name: "y", Fragments: persistence.FragmentMap{"k": {1}}},
			{Name: "x", Fragments: persistence.FragmentMap{"dup": {2}}},
		})

		Expect(r.Names()).To(Equal([]string{"x", "y"}))
		_, ok := r.Get("old")
		Expect(ok).To(BeFalse())

		x, _ := r.Get("x")
		Expect(x.Fragments).NotTo(BeNil())
		Expect(x.Fragments).To(BeEmpty())
	})
})
