package reactor

import "sync"

var (
	defaultLoop     *Loop
	defaultLoopOnce sync.Once
	defaultLoopErr  error
)

// Default returns the process-wide Loop, constructing it on first use
// with the default options. Nothing in this module falls back to it
// implicitly: the hash and net packages take the Loop as an argument.
func Default() (*Loop, error) {
	defaultLoopOnce.Do(func() {
		defaultLoop, defaultLoopErr = New()
	})
	return defaultLoop, defaultLoopErr
}
