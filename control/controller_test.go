package control_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/savestate/control"
	"github.com/sarchlab/savestate/hooking"
	"github.com/sarchlab/savestate/timing"
)

func atPos(pos *hooking.HookPos) gomock.Matcher {
	return gomock.Cond(func(x any) bool {
		ctx, ok := x.(hooking.HookCtx)
		return ok && ctx.Pos == pos
	})
}

var _ = Describe("Controller", func() {
	var (
		mockCtrl *gomock.Controller
		hook     *MockHook
		c        *control.Controller
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		hook = NewMockHook(mockCtrl)
		c = control.NewController(nil)
		c.AcceptHook(hook)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start running", func() {
		Expect(c.IsPaused()).To(BeFalse())
	})

	It("should notify once per transition", func() {
		gomock.InOrder(
			hook.EXPECT().Func(atPos(hooking.HookPosPause)).Return(nil),
			hook.EXPECT().Func(atPos(hooking.HookPosResume)).Return(nil),
		)

		changed, err := c.Pause()
		Expect(changed).To(BeTrue())
		Expect(err).NotTo(HaveOccurred())
		Expect(c.IsPaused()).To(BeTrue())

		changed, err = c.Pause()
		Expect(changed).To(BeFalse())
		Expect(err).NotTo(HaveOccurred())

		changed, err = c.Resume()
		Expect(changed).To(BeTrue())
		Expect(err).NotTo(HaveOccurred())

		changed, _ = c.Resume()
		Expect(changed).To(BeFalse())
		Expect(c.IsPaused()).To(BeFalse())
	})

	It("should pass itself as the domain", func() {
		hook.EXPECT().Func(gomock.Any()).DoAndReturn(func(ctx hooking.HookCtx) error {
			Expect(ctx.Domain).To(BeIdenticalTo(c))
			Expect(ctx.Item).To(BeNil())
			return nil
		})

		_, err := c.Pause()
		Expect(err).NotTo(HaveOccurred())
	})

	It("should keep notifying after a subscriber fails", func() {
		other := NewMockHook(mockCtrl)
		c.AcceptHook(other)

		hook.EXPECT().Func(gomock.Any()).Return(errors.New("busy"))
		other.EXPECT().Func(gomock.Any()).Return(nil)

		changed, err := c.Pause()

		Expect(changed).To(BeTrue())
		Expect(c.IsPaused()).To(BeTrue())

		var dispatchErr *hooking.DispatchError
		Expect(errors.As(err, &dispatchErr)).To(BeTrue())
		Expect(dispatchErr.Failures).To(HaveLen(1))
	})

	It("should toggle", func() {
		hook.EXPECT().Func(gomock.Any()).Return(nil).Times(2)

		Expect(c.Toggle()).To(Succeed())
		Expect(c.IsPaused()).To(BeTrue())

		Expect(c.Toggle()).To(Succeed())
		Expect(c.IsPaused()).To(BeFalse())
	})
})

var _ = Describe("Controller with timing contributors", func() {
	It("should freeze the play time while paused", func() {
		c := control.NewController(nil)
		counter := timing.NewPlayTimeCounter(true, nil)
		c.AcceptHook(counter)

		counter.Tick(2)
		_, err := c.Pause()
		Expect(err).NotTo(HaveOccurred())

		Expect(counter.Tick(5)).To(BeFalse())
		Expect(counter.Elapsed()).To(Equal(2.0))

		_, err = c.Resume()
		Expect(err).NotTo(HaveOccurred())
		Expect(counter.Tick(1)).To(BeTrue())
		Expect(counter.Elapsed()).To(Equal(3.0))
	})
})
