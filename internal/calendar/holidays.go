package calendar

import "time"

// rule yields the holiday date for a year; ok is false when the holiday does not apply that year.
type rule struct {
	name string
	on   func(year int) (time.Time, bool)
}

func fixed(name string, month time.Month, day int) rule {
	return rule{name: name, on: func(year int) (time.Time, bool) {
		return date(year, month, day), true
	}}
}

func fixedSince(name string, since int, month time.Month, day int) rule {
	return rule{name: name, on: func(year int) (time.Time, bool) {
		return date(year, month, day), year >= since
	}}
}

func fixedUntil(name string, until int, month time.Month, day int) rule {
	return rule{name: name, on: func(year int) (time.Time, bool) {
		return date(year, month, day), year <= until
	}}
}

func easterOffset(name string, days int) rule {
	return rule{name: name, on: func(year int) (time.Time, bool) {
		return easter(year).AddDate(0, 0, days), true
	}}
}

// nationalRules are the days the federal and state gazettes do not publish.
var nationalRules = []rule{
	fixed("Confraternização Universal", time.January, 1),
	easterOffset("Carnaval", -48),
	easterOffset("Carnaval", -47),
	easterOffset("Sexta-feira Santa", -2),
	fixed("Tiradentes", time.April, 21),
	fixed("Dia do Trabalhador", time.May, 1),
	easterOffset("Corpus Christi", 60),
	fixed("Independência do Brasil", time.September, 7),
	fixed("Nossa Senhora Aparecida", time.October, 12),
	fixed("Finados", time.November, 2),
	fixed("Proclamação da República", time.November, 15),
	fixedSince("Dia Nacional de Zumbi e da Consciência Negra", 2024, time.November, 20),
	fixed("Natal", time.December, 25),
}

// regionalRules holds state holidays keyed by state code.
var regionalRules = map[string][]rule{
	"RJ": {
		fixed("Dia de São Jorge", time.April, 23),
		fixedUntil("Dia da Consciência Negra", 2023, time.November, 20),
	},
	"SP": {
		fixed("Revolução Constitucionalista", time.July, 9),
		fixedUntil("Dia da Consciência Negra", 2023, time.November, 20),
	},
	"BA": {
		fixed("Independência da Bahia", time.July, 2),
	},
	"DF": {
		fixed("Dia do Evangélico", time.November, 30),
	},
}

// easter returns Easter Sunday of the Gregorian calendar (anonymous Gregorian algorithm).
func easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(year, time.Month(month), day)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
