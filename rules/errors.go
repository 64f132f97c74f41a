//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// ErrorsNewf collapses errors.New(fmt.Errorf(...)) into the builder's Newf
// when nothing is wrapped.
func ErrorsNewf(m dsl.Matcher) {
	m.Import("github.com/tphakala/cropguard/internal/errors")

	m.Match(`errors.New(fmt.Errorf($f, $*args))`).
		Where(!m["f"].Text.Matches(`%w`)).
		Report("use errors.Newf($f, $args)").
		Suggest("errors.Newf($f, $args)")
}

// LoggingNotPrinting flags stdout printing outside the command line.
func LoggingNotPrinting(m dsl.Matcher) {
	m.Match(`fmt.Println($*_)`, `fmt.Printf($*_)`, `log.Printf($*_)`, `log.Println($*_)`).
		Where(m.File().PkgPath.Matches(`.*/internal/.*`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("use the module logger (GetLogger()) instead of printing")
}
