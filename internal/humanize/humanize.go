package humanize

import (
	"context"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Pacing primitives for driving the remote browser like a person instead of
// a script. All delays are randomized; all input goes through CDP input
// dispatch rather than DOM events.

// SleepRandom sleeps for a uniform random duration between min and max
// milliseconds, honoring context cancellation.
func SleepRandom(ctx context.Context, minMs, maxMs int) {
	sleep(ctx, time.Duration(randBetween(minMs, maxMs))*time.Millisecond)
}

// SleepGaussian sleeps for a Gaussian-distributed duration clamped to
// mean +/- 3 sigma.
func SleepGaussian(ctx context.Context, meanMs, stdDevMs int) {
	sleep(ctx, time.Duration(gaussianDelay(meanMs, stdDevMs))*time.Millisecond)
}

// ThinkTime simulates the pause a person takes before acting on a page.
func ThinkTime(ctx context.Context) {
	SleepGaussian(ctx, 1400, 600)
}

// InterLeadDelay is the randomized pause between processing two leads.
func InterLeadDelay(ctx context.Context) {
	SleepGaussian(ctx, 8000, 2500)
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// randBetween returns a uniform random int in [min, max].
func randBetween(min, max int) int {
	if max < min {
		max = min
	}
	return min + rand.Intn(max-min+1)
}

// gaussianDelay draws a delay in milliseconds from N(mean, stdDev), clamped
// to mean +/- 3 sigma and never negative.
func gaussianDelay(meanMs, stdDevMs int) int {
	u1 := rand.Float64()
	u2 := rand.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	delay := int(float64(meanMs) + z*float64(stdDevMs))

	lo := meanMs - 3*stdDevMs
	hi := meanMs + 3*stdDevMs
	if delay < lo {
		delay = lo
	} else if delay > hi {
		delay = hi
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// MoveMouse moves the pointer from (fromX, fromY) to (toX, toY) along a
// cubic bezier with micro-jitter and variable speed.
func MoveMouse(ctx context.Context, fromX, fromY, toX, toY float64) error {
	dist := math.Hypot(toX-fromX, toY-fromY)
	steps := 25 + int(dist/25) + rand.Intn(10)

	cx1 := fromX + (toX-fromX)/3 + float64(rand.Intn(80)-40)
	cy1 := fromY + (toY-fromY)/3 + float64(rand.Intn(80)-40)
	cx2 := fromX + 2*(toX-fromX)/3 + float64(rand.Intn(80)-40)
	cy2 := fromY + 2*(toY-fromY)/3 + float64(rand.Intn(80)-40)

	for i := 0; i <= steps; i++ {
		t := easeInOutCubic(float64(i) / float64(steps))
		x := cubicBezier(fromX, cx1, cx2, toX, t) + float64(rand.Intn(3)-1)
		y := cubicBezier(fromY, cy1, cy2, toY, t) + float64(rand.Intn(3)-1)

		err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
		}))
		if err != nil {
			return err
		}

		delay := 6 + rand.Intn(8)
		if i < 4 || i > steps-4 {
			delay += 5
		}
		sleep(ctx, time.Duration(delay)*time.Millisecond)
	}
	return nil
}

// ClickAt moves the pointer to (x, y) with a human trajectory and clicks.
func ClickAt(ctx context.Context, x, y float64) error {
	fromX := 400 + float64(rand.Intn(400))
	fromY := 200 + float64(rand.Intn(300))
	if err := MoveMouse(ctx, fromX, fromY, x, y); err != nil {
		return err
	}
	SleepRandom(ctx, 50, 150)

	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MousePressed, x, y).
				WithButton(input.Left).WithClickCount(1).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			sleep(ctx, time.Duration(randBetween(30, 90))*time.Millisecond)
			return input.DispatchMouseEvent(input.MouseReleased, x, y).
				WithButton(input.Left).WithClickCount(1).Do(ctx)
		}),
	)
	return err
}

// TypeText types into the focused element with a human cadence: slower at
// the start, pauses at punctuation, and the occasional corrected typo.
func TypeText(ctx context.Context, text string) error {
	runes := []rune(text)
	for i, r := range runes {
		if rand.Float64() < 0.02 && i > 3 {
			wrong := nearbyRune(r)
			if err := chromedp.Run(ctx, chromedp.KeyEvent(string(wrong))); err != nil {
				return err
			}
			SleepRandom(ctx, 80, 180)
			if err := chromedp.Run(ctx, chromedp.KeyEvent(kb.Backspace)); err != nil {
				return err
			}
			SleepRandom(ctx, 100, 250)
		}

		if err := chromedp.Run(ctx, chromedp.KeyEvent(string(r))); err != nil {
			return err
		}

		base := 25
		switch {
		case i < 10:
			base = 40
		case r == ' ' || r == ',' || r == '.':
			base = 60
		case i > 0 && runes[i-1] == ' ':
			base = 35
		}
		SleepGaussian(ctx, base, 15)

		if rand.Float64() < 0.05 {
			SleepGaussian(ctx, 300, 150)
		}
	}
	return nil
}

// ScrollPage scrolls down in uneven chunks with reading pauses, sometimes
// scrolling back up a little.
func ScrollPage(ctx context.Context) error {
	steps := 2 + rand.Intn(4)
	for i := 0; i < steps; i++ {
		px := 250 + rand.Intn(450)
		err := chromedp.Run(ctx, chromedp.Evaluate(
			`window.scrollBy({top: `+strconv.Itoa(px)+`, behavior: 'smooth'})`, nil))
		if err != nil {
			return err
		}
		SleepGaussian(ctx, 500, 250)
		if rand.Float64() < 0.35 {
			SleepGaussian(ctx, 1200, 500)
		}
	}
	if rand.Float64() < 0.4 {
		err := chromedp.Run(ctx, chromedp.Evaluate(
			`window.scrollBy({top: -`+strconv.Itoa(80+rand.Intn(120))+`, behavior: 'smooth'})`, nil))
		if err != nil {
			return err
		}
	}
	return nil
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func cubicBezier(p0, p1, p2, p3, t float64) float64 {
	return math.Pow(1-t, 3)*p0 +
		3*math.Pow(1-t, 2)*t*p1 +
		3*(1-t)*math.Pow(t, 2)*p2 +
		math.Pow(t, 3)*p3
}

// nearbyRune returns a keyboard-adjacent rune for typo simulation.
func nearbyRune(r rune) rune {
	nearby := map[rune][]rune{
		'a': {'s', 'q', 'w', 'z'},
		'e': {'w', 'r', 'd'},
		'i': {'u', 'o', 'k', 'j'},
		'o': {'i', 'p', 'l', 'k'},
		's': {'a', 'd', 'w', 'x'},
		't': {'r', 'y', 'g', 'f'},
	}
	if opts, ok := nearby[r]; ok {
		return opts[rand.Intn(len(opts))]
	}
	opts := []rune{'a', 'e', 'i', 'o', 'u', 's', 'n', 't', 'r', 'l'}
	return opts[rand.Intn(len(opts))]
}
