package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadEmbeddedDefault(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("Load embedded default: %v", err)
	}

	banks := cat.Banks()
	if len(banks) != 4 {
		t.Fatalf("got %d banks, want 4", len(banks))
	}

	wantOrder := []string{"NIB", "Dashen", "CBE", "Awash"}
	for i, name := range wantOrder {
		if banks[i].Name != name {
			t.Errorf("bank[%d] = %s, want %s", i, banks[i].Name, name)
		}
	}

	products := cat.ProductsFor("NIB")
	if len(products) != 2 {
		t.Fatalf("NIB has %d products, want 2", len(products))
	}
	if products[0].Name != "NIB Microloan Basic" {
		t.Errorf("first NIB product = %s", products[0].Name)
	}
	if !products[0].MinAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("NIB Basic min = %s, want 500", products[0].MinAmount)
	}
	if !products[0].MaxAmount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("NIB Basic max = %s, want 5000", products[0].MaxAmount)
	}
	if products[0].MinCreditScore != 650 {
		t.Errorf("NIB Basic credit score = %d, want 650", products[0].MinCreditScore)
	}
}

func TestBankIndex(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := cat.Bank(-1); ok {
		t.Error("negative index should not resolve")
	}
	if _, ok := cat.Bank(4); ok {
		t.Error("out-of-range index should not resolve")
	}
	bank, ok := cat.Bank(1)
	if !ok || bank.Name != "Dashen" {
		t.Errorf("Bank(1) = %v, %v; want Dashen", bank.Name, ok)
	}
}

func TestProductsForUnknownBank(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cat.ProductsFor("Nowhere"); got != nil {
		t.Errorf("ProductsFor unknown bank = %v, want nil", got)
	}
}

func TestLoadFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `banks:
  - name: Test Bank
    products:
      - name: Test Loan
        min_amount: "100"
        max_amount: "1000"
        min_credit_score: 500
        description: Test product.
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write catalog file: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load override: %v", err)
	}
	if len(cat.Banks()) != 1 || cat.Banks()[0].Name != "Test Bank" {
		t.Errorf("override catalog = %+v", cat.Banks())
	}
}

func TestLoadRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", ":: ["},
		{"no banks", "banks: []"},
		{"bank without products", "banks:\n  - name: Empty\n    products: []"},
		{"bad amount", `banks:
  - name: B
    products:
      - name: P
        min_amount: "abc"
        max_amount: "10"
`},
		{"inverted range", `banks:
  - name: B
    products:
      - name: P
        min_amount: "100"
        max_amount: "10"
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parse([]byte(tt.content)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
