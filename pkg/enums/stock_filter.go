package enums

import "fmt"

// StockFilter narrows product listings by availability.
type StockFilter string

const (
	StockFilterAll        StockFilter = "all"
	StockFilterInStock    StockFilter = "in_stock"
	StockFilterOutOfStock StockFilter = "out_of_stock"
)

// ParseStockFilter defaults blank input to StockFilterAll.
func ParseStockFilter(value string) (StockFilter, error) {
	switch StockFilter(value) {
	case "", StockFilterAll:
		return StockFilterAll, nil
	case StockFilterInStock, StockFilterOutOfStock:
		return StockFilter(value), nil
	}
	return "", fmt.Errorf("invalid stock filter %q", value)
}
