package tapstore

import (
	"errors"

	"github.com/roach88/tap/internal/tap"
)

type counterActions struct {
	Increment func()
	Add       func(n int)
	Reset     func() error
}

var errResetLocked = errors.New("reset locked")

var counterStore = tap.New("counter", func(c *tap.Ctx, initial int) Output[int, counterActions] {
	n, set := tap.State(c, initial)
	locked := n > 100

	actions := tap.Memo(c, func() counterActions {
		return counterActions{
			Increment: func() { set.Update(func(p int) int { return p + 1 }) },
			Add:       func(d int) { set.Update(func(p int) int { return p + d }) },
			Reset: func() error {
				if locked {
					return errResetLocked
				}
				set.Set(0)
				return nil
			},
		}
	}, tap.Deps{set, locked})

	return Output[int, counterActions]{State: n, Api: UseApi(c, n, actions)}
})
