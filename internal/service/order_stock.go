package service

import (
	"github.com/dukani-next/internal/repository"
)

// releaseOrderStock hands the units of a cancelled order back to tracked products
func releaseOrderStock(orders repository.OrderRepository, products repository.ProductRepository, orderID uint) error {
	items, err := orders.ListItems(orderID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := products.IncrementStock(item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// reserveOrderStock takes the units again for an order leaving cancelled. It returns
// the names of lines that could not be covered; the caller decides whether that blocks.
func reserveOrderStock(orders repository.OrderRepository, products repository.ProductRepository, orderID uint) ([]string, error) {
	items, err := orders.ListItems(orderID)
	if err != nil {
		return nil, err
	}
	var short []string
	for _, item := range items {
		affected, err := products.DecrementStock(item.ProductID, item.Quantity)
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			short = append(short, item.ProductName)
		}
	}
	return short, nil
}
