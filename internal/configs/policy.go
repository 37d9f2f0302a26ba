package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/syncengine"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Policy - содержимое POLICY_FILE: зона обслуживания, пороги, каталоги, редакторы
type Policy struct {
	ServiceArea ServiceAreaPolicy             `yaml:"service_area"`
	Thresholds  ThresholdsPolicy              `yaml:"thresholds"`
	Catalogs    CatalogsPolicy                `yaml:"catalogs"`
	Editors     map[domain.Editor]EditorEntry `yaml:"editors"`
}

type ServiceAreaPolicy struct {
	MinLat       float64  `yaml:"min_lat"`
	MaxLat       float64  `yaml:"max_lat"`
	MinLon       float64  `yaml:"min_lon"`
	MaxLon       float64  `yaml:"max_lon"`
	GeohashCells []string `yaml:"geohash_cells"`
}

// ThresholdsPolicy: незаданный порог берется из значений по умолчанию
type ThresholdsPolicy struct {
	PricePerSqmHardMin  *float64 `yaml:"price_per_sqm_hard_min"`
	PricePerSqmHardMax  *float64 `yaml:"price_per_sqm_hard_max"`
	PricePerSqmWarnMin  *float64 `yaml:"price_per_sqm_warn_min"`
	PricePerSqmWarnMax  *float64 `yaml:"price_per_sqm_warn_max"`
	AreaWarnMin         *float64 `yaml:"area_warn_min"`
	AreaWarnMax         *float64 `yaml:"area_warn_max"`
	ParkingSurchargeMin *float64 `yaml:"parking_surcharge_min"`
	ParkingSurchargeMax *float64 `yaml:"parking_surcharge_max"`
	StorageSurchargeMin *float64 `yaml:"storage_surcharge_min"`
	StorageSurchargeMax *float64 `yaml:"storage_surcharge_max"`
}

type CatalogsPolicy struct {
	Amenities []string `yaml:"amenities"`
	Equipment []string `yaml:"equipment"`
}

// EditorEntry: пустой editable_fields - можно редактировать все
type EditorEntry struct {
	ExemptParallelPrice bool     `yaml:"exempt_parallel_price"`
	EditableFields      []string `yaml:"editable_fields"`
}

// DefaultPolicy - брокер не пишет производную цену в журнал, админ пишет
func DefaultPolicy() *Policy {
	return &Policy{
		Catalogs: CatalogsPolicy{
			Amenities: []string{"Piscina", "Gimnasio", "Churrasquera", "Salón de eventos", "Seguridad 24h", "Ascensor", "Área de juegos"},
			Equipment: []string{"Cocina equipada", "Aire acondicionado", "Calefón", "Roperos empotrados", "Cortinas"},
		},
		Editors: map[domain.Editor]EditorEntry{
			domain.EditorAdmin:  {ExemptParallelPrice: false},
			domain.EditorBroker: {ExemptParallelPrice: true},
		},
	}
}

// LoadPolicy читает YAML. Пустой путь или отсутствующий файл - политика по умолчанию.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultPolicy(), nil
		}
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	return ParsePolicy(data)
}

func ParsePolicy(data []byte) (*Policy, error) {
	p := DefaultPolicy()
	defaultEditors := p.Editors
	p.Editors = nil

	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	if p.Editors == nil {
		p.Editors = defaultEditors
	}
	for editor := range p.Editors {
		if !editor.Valid() {
			return nil, fmt.Errorf("policy: unknown editor %q", editor)
		}
		if _, err := p.EditorPolicy(editor); err != nil {
			return nil, err
		}
	}
	for editor, entry := range defaultEditors {
		if _, ok := p.Editors[editor]; !ok {
			p.Editors[editor] = entry
		}
	}
	return p, nil
}

func (p *Policy) ValidatorConfig() syncengine.ValidatorConfig {
	cfg := syncengine.DefaultValidatorConfig()
	t := p.Thresholds

	override := func(dst *decimal.Decimal, v *float64) {
		if v != nil {
			*dst = decimal.NewFromFloat(*v)
		}
	}
	override(&cfg.PricePerSqmHardMin, t.PricePerSqmHardMin)
	override(&cfg.PricePerSqmHardMax, t.PricePerSqmHardMax)
	override(&cfg.PricePerSqmWarnMin, t.PricePerSqmWarnMin)
	override(&cfg.PricePerSqmWarnMax, t.PricePerSqmWarnMax)
	override(&cfg.AreaWarnMin, t.AreaWarnMin)
	override(&cfg.AreaWarnMax, t.AreaWarnMax)
	override(&cfg.ParkingSurchargeMin, t.ParkingSurchargeMin)
	override(&cfg.ParkingSurchargeMax, t.ParkingSurchargeMax)
	override(&cfg.StorageSurchargeMin, t.StorageSurchargeMin)
	override(&cfg.StorageSurchargeMax, t.StorageSurchargeMax)

	cfg.ServiceArea = syncengine.ServiceArea{
		MinLat:       p.ServiceArea.MinLat,
		MaxLat:       p.ServiceArea.MaxLat,
		MinLon:       p.ServiceArea.MinLon,
		MaxLon:       p.ServiceArea.MaxLon,
		GeohashCells: p.ServiceArea.GeohashCells,
	}
	return cfg
}

// EditorPolicy собирает доменную политику; имена полей проверяются
func (p *Policy) EditorPolicy(editor domain.Editor) (domain.EditorPolicy, error) {
	entry, ok := p.Editors[editor]
	if !ok {
		return domain.EditorPolicy{}, fmt.Errorf("policy: editor %q is not configured", editor)
	}

	policy := domain.EditorPolicy{Editor: editor, ExemptParallelPrice: entry.ExemptParallelPrice}
	if len(entry.EditableFields) == 0 {
		return policy, nil
	}

	policy.EditableFields = domain.NewFieldSet()
	for _, name := range entry.EditableFields {
		f, err := domain.ParseFieldName(name)
		if err != nil {
			return domain.EditorPolicy{}, fmt.Errorf("policy: editor %s: %w", editor, err)
		}
		policy.EditableFields[f] = struct{}{}
	}
	return policy, nil
}
