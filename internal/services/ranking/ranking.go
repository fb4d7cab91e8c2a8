package ranking

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BearBump/ParcelMatch/internal/errs"
	"github.com/BearBump/ParcelMatch/internal/models"
)

type SortOption string

const (
	SortMatch SortOption = "match"
	SortPrice SortOption = "price"
	SortTime  SortOption = "time"
)

// Rank упорядочивает кандидатов по выбранному критерию. Чистая функция:
// вход не мутируется, возвращается новый срез. Неизвестный критерий —
// ошибка, а не молчаливый дефолт.
func Rank(candidates []*models.CarrierCandidate, by SortOption) ([]*models.CarrierCandidate, error) {
	switch by {
	case SortMatch, SortPrice, SortTime:
	default:
		return nil, errs.NewValidation("unknown sort option: %q", by)
	}

	out := make([]*models.CarrierCandidate, len(candidates))
	copy(out, candidates)

	switch by {
	case SortMatch:
		// Лучший скор первым; при равенстве — дешевле первым.
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].MatchScore != out[j].MatchScore {
				return out[i].MatchScore > out[j].MatchScore
			}
			return out[i].Compensation < out[j].Compensation
		})
	case SortPrice:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Compensation != out[j].Compensation {
				return out[i].Compensation < out[j].Compensation
			}
			return out[i].MatchScore > out[j].MatchScore
		})
	case SortTime:
		sort.SliceStable(out, func(i, j int) bool {
			ti := normalizeArrival(out[i].EstimatedArrival)
			tj := normalizeArrival(out[j].EstimatedArrival)
			if ti != tj {
				return ti < tj
			}
			return out[i].MatchScore > out[j].MatchScore
		})
	}
	return out, nil
}

// normalizeArrival приводит время прибытия к "HH:MM" в 24-часовом виде,
// чтобы лексикографическое сравнение совпадало с хронологическим.
// Принимает "2:45 PM" и "14:45"; нераспознанное уходит в конец списка.
func normalizeArrival(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "99:99"
	}

	for _, layout := range []string{"3:04 PM", "3:04PM", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04")
		}
	}

	// Фолбэк: выкинуть всё кроме цифр и двоеточия и дополнить час нулём.
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == ':' {
			return r
		}
		return -1
	}, s)
	if i := strings.Index(cleaned, ":"); i == 1 {
		cleaned = "0" + cleaned
	}
	if cleaned == "" {
		return "99:99"
	}
	return fmt.Sprintf("%.5s", cleaned)
}
