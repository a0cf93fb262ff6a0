package calendar

import (
	"log/slog"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/be"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/us"
)

// DefaultCountry — календарь по умолчанию для неизвестных кодов стран.
const DefaultCountry = "FR"

// Resolver вычисляет даты в рабочих днях с учётом национальных
// праздников. Рабочий день — не суббота, не воскресенье и не праздник
// страны контейнера.
//
// Детерминирован: результат зависит только от аргументов, не от
// текущего времени. Повторный вызов с теми же аргументами даёт ту же
// дату.
type Resolver struct {
	registry map[string][]*cal.Holiday
	logger   *slog.Logger
}

// NewResolver создаёт Resolver со встроенным набором стран.
func NewResolver() *Resolver {
	return &Resolver{
		logger: slog.Default(),
		registry: map[string][]*cal.Holiday{
			"FR": fr.Holidays,
			"US": us.Holidays,
			"GB": gb.Holidays,
			"DE": de.Holidays,
			"ES": es.Holidays,
			"IT": it.Holidays,
			"NL": nl.Holidays,
			"BE": be.Holidays,
		},
	}
}

// Register добавляет или заменяет набор праздников страны.
func (r *Resolver) Register(country string, holidays []*cal.Holiday) {
	r.registry[strings.ToUpper(country)] = holidays
}

// Resolve возвращает дату через delayDays рабочих дней после start.
// Неположительная задержка возвращает start без изменений. Неизвестный
// или пустой код страны использует календарь DefaultCountry.
func (r *Resolver) Resolve(start time.Time, delayDays int, country string) time.Time {
	if delayDays <= 0 {
		return start
	}

	holidays := r.holidaySet(start, delayDays, country)

	current := start
	remaining := delayDays
	for remaining > 0 {
		current = current.AddDate(0, 0, 1)
		if isWorkingDay(current, holidays) {
			remaining--
		}
	}
	return current
}

// AddCalendarDays возвращает дату через delayDays календарных дней.
// Используется контейнерами с UseWorkingDays=false.
func AddCalendarDays(start time.Time, delayDays int) time.Time {
	return start.AddDate(0, 0, delayDays)
}

// holidaySet собирает даты праздников на окно поиска. Окно покрывает
// годы от start до start + 2*delayDays + 365 календарных дней: даже
// цепочка, целиком попавшая на праздники и выходные, не выйдет за него.
func (r *Resolver) holidaySet(start time.Time, delayDays int, country string) map[string]struct{} {
	defs, ok := r.registry[strings.ToUpper(country)]
	if !ok || len(defs) == 0 {
		// Пустой код — контейнер без страны, это штатная ситуация
		if country != "" {
			r.logger.Warn("unknown country code, using fallback calendar",
				"country", country,
				"fallback", DefaultCountry,
			)
		}
		defs = r.registry[DefaultCountry]
	}

	end := start.AddDate(0, 0, 2*delayDays+365)

	set := make(map[string]struct{})
	for year := start.Year(); year <= end.Year(); year++ {
		for _, h := range defs {
			actual, observed := h.Calc(year)
			if !actual.IsZero() {
				set[dayKey(actual)] = struct{}{}
			}
			if !observed.IsZero() {
				set[dayKey(observed)] = struct{}{}
			}
		}
	}
	return set
}

func isWorkingDay(t time.Time, holidays map[string]struct{}) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := holidays[dayKey(t)]
	return !holiday
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
