//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// InjectedClock keeps wall-clock calls out of the packages whose timing is
// tested with clockwork.FakeClock. Confirmation windows, deterrent holds and
// the fan-out all take a clockwork.Clock.
func InjectedClock(m dsl.Matcher) {
	timed := `.*/internal/(confirmation|deterrent|fanout|bot)$`

	m.Match(`time.Now()`).
		Where(m.File().PkgPath.Matches(timed) && !m.File().Name.Matches(`_test\.go$`)).
		Report("use the injected clockwork.Clock instead of time.Now()")

	m.Match(`time.Sleep($d)`).
		Where(m.File().PkgPath.Matches(timed)).
		Report("use clock.Sleep($d) or a select on clock.After($d) so tests can advance time")

	m.Match(`time.After($d)`, `time.NewTimer($d)`, `time.NewTicker($d)`, `time.AfterFunc($d, $_)`).
		Where(m.File().PkgPath.Matches(timed) && !m.File().Name.Matches(`_test\.go$`)).
		Report("use the clockwork.Clock equivalent so tests can advance time")
}
