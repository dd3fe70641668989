package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ignatzorin/marketplace-api/internal/models"
)

//go:embed packages.yaml
var packagesYAML []byte

// GrantValidity срок действия купленных connects.
const GrantValidity = 6 * 30 * 24 * time.Hour

// Catalog неизменяемый каталог пакетов connects.
type Catalog struct {
	Currency string
	packages []models.ConnectPackage
	byID     map[int]models.ConnectPackage
}

type file struct {
	Currency string                  `yaml:"currency"`
	Packages []models.ConnectPackage `yaml:"packages"`
}

// Default возвращает встроенный каталог.
func Default() *Catalog {
	c, err := Parse(packagesYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: встроенный каталог повреждён: %v", err))
	}
	return c
}

// Parse разбирает каталог из YAML и проверяет его целостность.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: не удалось разобрать yaml: %w", err)
	}
	if f.Currency == "" {
		return nil, fmt.Errorf("catalog: не указана валюта")
	}
	if len(f.Packages) == 0 {
		return nil, fmt.Errorf("catalog: пустой список пакетов")
	}

	c := &Catalog{Currency: f.Currency, byID: make(map[int]models.ConnectPackage, len(f.Packages))}
	for _, p := range f.Packages {
		if p.ID <= 0 || p.Connects <= 0 || p.Price <= 0 {
			return nil, fmt.Errorf("catalog: некорректный пакет %d", p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog: повторяющийся id пакета %d", p.ID)
		}
		c.byID[p.ID] = p
		c.packages = append(c.packages, p)
	}
	sort.Slice(c.packages, func(i, j int) bool { return c.packages[i].ID < c.packages[j].ID })

	return c, nil
}

// Packages возвращает копию списка пакетов в порядке id.
func (c *Catalog) Packages() []models.ConnectPackage {
	out := make([]models.ConnectPackage, len(c.packages))
	copy(out, c.packages)
	return out
}

// Lookup ищет пакет по id.
func (c *Catalog) Lookup(id int) (models.ConnectPackage, bool) {
	p, ok := c.byID[id]
	return p, ok
}
