package retry_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chapterhouse/docbot/pkg/retry"
)

var _ = Describe("Do", func() {
	var (
		ctx    context.Context
		policy retry.Policy
	)

	// Classify everything as transient unless the test says otherwise.
	transientAlways := func(error) retry.Class { return retry.Transient }

	BeforeEach(func() {
		ctx = context.Background()
		policy = retry.Policy{
			MaxAttempts: 4,
			BaseDelay:   time.Millisecond,
			MaxDelay:    4 * time.Millisecond,
		}
	})

	Context("when the call succeeds immediately", func() {
		It("returns the result after a single attempt", func() {
			calls := 0
			result, err := retry.Do(ctx, policy, transientAlways, func(context.Context) (string, error) {
				calls++
				return "ok", nil
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("ok"))
			Expect(calls).To(Equal(1))
		})
	})

	Context("when the call fails transiently below the attempt bound", func() {
		It("returns the eventual success and hides intermediate failures", func() {
			calls := 0
			result, err := retry.Do(ctx, policy, transientAlways, func(context.Context) (string, error) {
				calls++
				if calls < 3 {
					return "", errors.New("upstream 503")
				}
				return "answer", nil
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("answer"))
			Expect(calls).To(Equal(3))
		})
	})

	Context("when transient failures outlast the attempt bound", func() {
		It("stops after exactly MaxAttempts and reports exhaustion", func() {
			calls := 0
			boom := errors.New("upstream 503")
			_, err := retry.Do(ctx, policy, transientAlways, func(context.Context) (string, error) {
				calls++
				return "", boom
			})

			Expect(calls).To(Equal(policy.MaxAttempts))
			Expect(errors.Is(err, retry.ErrExhausted)).To(BeTrue())
			Expect(errors.Is(err, boom)).To(BeTrue())
		})
	})

	Context("when the error is permanent", func() {
		It("aborts immediately without retrying", func() {
			calls := 0
			boom := errors.New("invalid cache reference")
			classify := func(error) retry.Class { return retry.Permanent }

			_, err := retry.Do(ctx, policy, classify, func(context.Context) (string, error) {
				calls++
				return "", boom
			})

			Expect(calls).To(Equal(1))
			Expect(err).To(MatchError(boom))
			Expect(errors.Is(err, retry.ErrExhausted)).To(BeFalse())
		})
	})

	Context("when the context is cancelled mid-loop", func() {
		It("stops sleeping and returns the context error", func() {
			cctx, cancel := context.WithCancel(ctx)
			policy.BaseDelay = time.Minute
			policy.MaxDelay = time.Minute

			calls := 0
			go func() {
				time.Sleep(10 * time.Millisecond)
				cancel()
			}()
			_, err := retry.Do(cctx, policy, transientAlways, func(context.Context) (string, error) {
				calls++
				return "", errors.New("slow upstream")
			})

			Expect(calls).To(Equal(1))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})

	Context("when the policy has no attempts configured", func() {
		It("still runs the call once", func() {
			calls := 0
			result, err := retry.Do(ctx, retry.Policy{}, transientAlways, func(context.Context) (int, error) {
				calls++
				return 42, nil
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(42))
			Expect(calls).To(Equal(1))
		})
	})
})

var _ = Describe("Policy", func() {
	Describe("Backoff", func() {
		policy := retry.Policy{
			BaseDelay: time.Second,
			MaxDelay:  30 * time.Second,
		}

		It("grows exponentially from the base delay", func() {
			Expect(policy.Backoff(1)).To(Equal(time.Second))
			Expect(policy.Backoff(2)).To(Equal(2 * time.Second))
			Expect(policy.Backoff(3)).To(Equal(4 * time.Second))
		})

		It("caps growth at the max delay", func() {
			Expect(policy.Backoff(6)).To(Equal(30 * time.Second))
			Expect(policy.Backoff(60)).To(Equal(30 * time.Second))
		})

		It("returns zero for non-positive attempts", func() {
			Expect(policy.Backoff(0)).To(BeZero())
			Expect(policy.Backoff(-1)).To(BeZero())
		})
	})
})
