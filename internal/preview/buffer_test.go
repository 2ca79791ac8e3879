package preview_test

import (
	"io"
	"log/slog"
	"math"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/google/uuid"
	"github.com/san-kum/qpctl/internal/dynamo"
	"github.com/san-kum/qpctl/internal/preview"
)

type call struct {
	u  dynamo.Control
	dt float64
}

func newPlan(timestep float64, blocks ...[]float64) *preview.Plan {
	p := &preview.Plan{ID: uuid.New(), UDim: len(blocks[0]), Timestep: timestep}
	for _, b := range blocks {
		p.U = append(p.U, b...)
	}
	return p
}

var _ = Describe("Buffer", func() {
	const (
		T  = 1.0
		dt = T / 2
	)

	var (
		mu    sync.Mutex
		calls []call
		buf   *preview.Buffer
	)

	record := func(u dynamo.Control, dt float64) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, call{u: u.Clone(), dt: dt})
	}

	BeforeEach(func() {
		calls = nil
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		buf = preview.NewBuffer(2, record, preview.WithLogger(logger))
	})

	Context("without a plan", func() {
		It("serves zero control held for zero time", func() {
			u, hold := buf.NextControl()
			Expect(u).To(Equal(dynamo.Control{0, 0}))
			Expect(hold).To(BeZero())
		})

		It("calls back with zero control every tick", func() {
			for i := 0; i < 3; i++ {
				buf.OnTick(dt)
			}
			Expect(calls).To(HaveLen(3))
			for _, c := range calls {
				Expect(c.u).To(Equal(dynamo.Control{0, 0}))
				Expect(c.dt).To(Equal(dt))
			}
		})
	})

	Context("with a plan of three samples", func() {
		var plan *preview.Plan

		BeforeEach(func() {
			plan = newPlan(T, []float64{1, 2}, []float64{3, 4}, []float64{5, 6})
			Expect(buf.UpdatePreview(plan)).To(Succeed())
		})

		It("serves each sample on two consecutive half-step ticks", func() {
			for i := 0; i < 6; i++ {
				buf.OnTick(dt)
			}
			Expect(calls).To(HaveLen(6))
			for k := 0; k < 3; k++ {
				Expect(calls[2*k].u).To(Equal(plan.Control(k)))
				Expect(calls[2*k+1].u).To(Equal(plan.Control(k)))
			}
		})

		It("falls back to zero control once exhausted", func() {
			for i := 0; i < 10; i++ {
				buf.OnTick(dt)
			}
			for _, c := range calls[6:] {
				Expect(c.u).To(Equal(dynamo.Control{0, 0}))
			}
			Expect(buf.Pending()).To(BeZero())

			u, hold := buf.NextControl()
			Expect(u).To(Equal(dynamo.Control{0, 0}))
			Expect(hold).To(BeZero())
		})

		It("returns copies of the plan samples", func() {
			u, hold := buf.NextControl()
			Expect(hold).To(Equal(T))
			u[0] = 42
			Expect(plan.U[0]).To(Equal(1.0))
		})

		It("restarts from the first sample of a new plan mid-consumption", func() {
			buf.OnTick(dt)
			buf.OnTick(dt)
			buf.OnTick(dt)
			Expect(buf.Pending()).To(Equal(1))

			next := newPlan(T, []float64{-1, -1}, []float64{-2, -2})
			Expect(buf.UpdatePreview(next)).To(Succeed())
			Expect(buf.Pending()).To(Equal(2))

			u, hold := buf.NextControl()
			Expect(u).To(Equal(dynamo.Control{-1, -1}))
			Expect(hold).To(Equal(T))
		})

		It("rejects a plan with the wrong control dimension", func() {
			err := buf.UpdatePreview(newPlan(T, []float64{1, 2, 3}))
			Expect(err).To(MatchError(ContainSubstring("control dimension")))
			Expect(buf.Pending()).To(Equal(3))
		})
		It("rejects a plan with a non-finite sample", func() {
			err := buf.UpdatePreview(newPlan(T, []float64{1, 2}, []float64{math.NaN(), 0}))
			Expect(err).To(MatchError(dynamo.ErrInvalidState))
			err = buf.UpdatePreview(newPlan(T, []float64{math.Inf(1), 0}))
			Expect(err).To(MatchError(dynamo.ErrInvalidState))
			Expect(buf.Pending()).To(Equal(3))
		})
	})

	Context("when the tick does not divide the sample period exactly", func() {
		It("holds every sample for a whole number of ticks", func() {
			var served []float64
			b := preview.NewBuffer(1, func(u dynamo.Control, _ float64) {
				served = append(served, u[0])
			})
			Expect(b.UpdatePreview(newPlan(0.3, []float64{1}, []float64{2}, []float64{3}))).To(Succeed())
			for i := 0; i < 11; i++ {
				b.OnTick(0.1)
			}
			Expect(served).To(Equal([]float64{1, 1, 1, 2, 2, 2, 3, 3, 3, 0, 0}))
		})

		It("keeps the count over a long plan at a fine tick", func() {
			blocks := make([][]float64, 50)
			for k := range blocks {
				blocks[k] = []float64{float64(k + 1)}
			}
			counts := map[float64]int{}
			b := preview.NewBuffer(1, func(u dynamo.Control, _ float64) {
				counts[u[0]]++
			})
			Expect(b.UpdatePreview(newPlan(0.1, blocks...))).To(Succeed())
			for i := 0; i < 500; i++ {
				b.OnTick(0.01)
			}
			for k := 1; k <= 50; k++ {
				Expect(counts[float64(k)]).To(Equal(10), "sample %d", k)
			}
		})
	})

	Context("with a planner goroutine", func() {
		It("only ever serves samples from installed plans", func() {
			plans := []*preview.Plan{
				newPlan(dt, []float64{1, 1}, []float64{1, 1}),
				newPlan(dt, []float64{2, 2}, []float64{2, 2}),
			}
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				for i := 0; i < 200; i++ {
					Expect(buf.UpdatePreview(plans[i%2])).To(Succeed())
				}
			}()
			for i := 0; i < 200; i++ {
				buf.OnTick(dt)
			}
			wg.Wait()

			mu.Lock()
			defer mu.Unlock()
			for _, c := range calls {
				Expect(c.u).To(Or(
					Equal(dynamo.Control{0, 0}),
					Equal(dynamo.Control{1, 1}),
					Equal(dynamo.Control{2, 2}),
				))
			}
		})
	})
})
