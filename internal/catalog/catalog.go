// Package catalog provides the immutable bank and loan-product reference
// data. A default catalog is embedded in the binary; a YAML file can
// override it at startup.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/natnaelb/microloan-ussd/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type productFile struct {
	Name           string `yaml:"name"`
	MinAmount      string `yaml:"min_amount"`
	MaxAmount      string `yaml:"max_amount"`
	MinCreditScore int    `yaml:"min_credit_score"`
	Description    string `yaml:"description"`
}

type bankFile struct {
	Name     string        `yaml:"name"`
	Products []productFile `yaml:"products"`
}

type catalogFile struct {
	Banks []bankFile `yaml:"banks"`
}

// Catalog is the loaded, immutable reference data. Banks and products keep
// their definition order.
type Catalog struct {
	banks []domain.Bank
}

// Load reads the catalog from path, or from the embedded default when path
// is empty.
func Load(path string) (*Catalog, error) {
	raw := defaultCatalog
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog file: %w", err)
		}
		raw = data
	}
	return parse(raw)
}

func parse(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Banks) == 0 {
		return nil, fmt.Errorf("catalog defines no banks")
	}

	banks := make([]domain.Bank, 0, len(file.Banks))
	for _, b := range file.Banks {
		if b.Name == "" {
			return nil, fmt.Errorf("catalog bank with empty name")
		}
		if len(b.Products) == 0 {
			return nil, fmt.Errorf("bank %s defines no products", b.Name)
		}
		bank := domain.Bank{Name: b.Name, Products: make([]domain.LoanProduct, 0, len(b.Products))}
		for _, p := range b.Products {
			prod, err := parseProduct(b.Name, p)
			if err != nil {
				return nil, err
			}
			bank.Products = append(bank.Products, prod)
		}
		banks = append(banks, bank)
	}
	return &Catalog{banks: banks}, nil
}

func parseProduct(bank string, p productFile) (domain.LoanProduct, error) {
	if p.Name == "" {
		return domain.LoanProduct{}, fmt.Errorf("bank %s has a product with empty name", bank)
	}
	minAmount, err := decimal.NewFromString(p.MinAmount)
	if err != nil {
		return domain.LoanProduct{}, fmt.Errorf("product %s min_amount: %w", p.Name, err)
	}
	maxAmount, err := decimal.NewFromString(p.MaxAmount)
	if err != nil {
		return domain.LoanProduct{}, fmt.Errorf("product %s max_amount: %w", p.Name, err)
	}
	if minAmount.IsNegative() || maxAmount.LessThan(minAmount) {
		return domain.LoanProduct{}, fmt.Errorf("product %s has invalid amount range %s-%s", p.Name, minAmount, maxAmount)
	}
	return domain.LoanProduct{
		Name:           p.Name,
		MinAmount:      minAmount,
		MaxAmount:      maxAmount,
		MinCreditScore: p.MinCreditScore,
		Description:    p.Description,
	}, nil
}

// Banks returns all banks in definition order.
func (c *Catalog) Banks() []domain.Bank {
	return c.banks
}

// Bank returns the bank at the given 0-based index.
func (c *Catalog) Bank(i int) (domain.Bank, bool) {
	if i < 0 || i >= len(c.banks) {
		return domain.Bank{}, false
	}
	return c.banks[i], true
}

// ProductsFor returns the ordered products of the named bank.
func (c *Catalog) ProductsFor(bank string) []domain.LoanProduct {
	for _, b := range c.banks {
		if b.Name == bank {
			return b.Products
		}
	}
	return nil
}
