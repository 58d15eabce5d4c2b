package tlb

import (
	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vmemsim/mem/vm"
	"github.com/sarchlab/vmemsim/mem/vm/frame"
)

var _ = ginkgo.Describe("TLB", func() {
	var t *TLB

	ginkgo.BeforeEach(func() {
		t = New(2)
	})

	ginkgo.It("misses on an empty buffer", func() {
		_, hit := t.GetFrame("p1", 1)
		Expect(hit).To(BeFalse())
	})

	ginkgo.It("hits after an insert", func() {
		t.Insert("p1", 1, 0x1000, frame.ID(5), true)

		f, hit := t.GetFrame("p1", 1)
		Expect(hit).To(BeTrue())
		Expect(f).To(Equal(frame.ID(5)))
	})

	ginkgo.It("never reports a hit for an inactive entry", func() {
		t.Insert("p1", 1, 0x1000, frame.ID(5), false)

		_, hit := t.GetFrame("p1", 1)
		Expect(hit).To(BeFalse())
	})

	ginkgo.It("evicts the oldest entry once full", func() {
		t.Insert("p1", 1, 0, frame.ID(1), true)
		t.Insert("p1", 2, 0x1000, frame.ID(2), true)
		t.Insert("p1", 3, 0x2000, frame.ID(3), true)

		_, hit := t.GetFrame("p1", 1)
		Expect(hit).To(BeFalse())

		_, hit = t.GetFrame("p1", 2)
		Expect(hit).To(BeTrue())
		_, hit = t.GetFrame("p1", 3)
		Expect(hit).To(BeTrue())
	})

	ginkgo.It("is a no-op at zero capacity", func() {
		zero := New(0)
		zero.Insert("p1", 1, 0, frame.ID(1), true)

		_, hit := zero.GetFrame("p1", 1)
		Expect(hit).To(BeFalse())
		Expect(zero.Len()).To(Equal(0))
	})

	ginkgo.It("removes only the entries belonging to a process, preserving order", func() {
		t = New(3)
		t.Insert("p1", 1, 0, frame.ID(1), true)
		t.Insert("p2", 1, 0, frame.ID(2), true)
		t.Insert("p1", 2, 0x1000, frame.ID(3), true)

		t.RemoveProcess("p1")

		Expect(t.Len()).To(Equal(1))
		_, hit := t.GetFrame("p2", 1)
		Expect(hit).To(BeTrue())
		_, hit = t.GetFrame("p1", 1)
		Expect(hit).To(BeFalse())
	})

	ginkgo.It("drops everything on clear", func() {
		t.Insert("p1", 1, 0, frame.ID(1), true)
		t.Clear()
		Expect(t.Len()).To(Equal(0))
	})

	ginkgo.It("keeps distinct pids with the same page separate", func() {
		t.Insert(vm.PID("a"), 4, 0x4000, frame.ID(9), true)
		t.Insert(vm.PID("b"), 4, 0x4000, frame.ID(10), true)

		fa, _ := t.GetFrame("a", 4)
		fb, _ := t.GetFrame("b", 4)
		Expect(fa).To(Equal(frame.ID(9)))
		Expect(fb).To(Equal(frame.ID(10)))
	})
})
