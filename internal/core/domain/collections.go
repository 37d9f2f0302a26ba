package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// SplitCollection делит хранимый список (amenities/equipment) на позиции
// из каталога и пользовательские. Сравнение без учета регистра, в ответе
// позиции каталога идут в его написании. Дубликаты отбрасываются.
func SplitCollection(catalog, merged []string) (catalogItems, customItems []string) {
	folder := cases.Fold()

	known := make(map[string]string, len(catalog))
	for _, item := range catalog {
		known[folder.String(strings.TrimSpace(item))] = item
	}

	seen := make(map[string]struct{}, len(merged))
	for _, raw := range merged {
		item := strings.TrimSpace(raw)
		if item == "" {
			continue
		}
		key := folder.String(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if canonical, ok := known[key]; ok {
			catalogItems = append(catalogItems, canonical)
		} else {
			customItems = append(customItems, item)
		}
	}
	return catalogItems, customItems
}

// MergeCollection - обратная операция для формы: каталог + свои позиции
func MergeCollection(catalogItems, customItems []string) []string {
	_, custom := SplitCollection(catalogItems, customItems)
	out := make([]string, 0, len(catalogItems)+len(custom))
	out = append(out, catalogItems...)
	return append(out, custom...)
}
