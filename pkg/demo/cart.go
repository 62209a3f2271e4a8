package demo

import (
	"math"
	"slices"

	"github.com/vango-dev/vstore/pkg/store"
)

// Product is a catalog entry that can be added to the cart.
type Product struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Products is the demo catalog.
var Products = []Product{
	{ID: 1, Name: "Product A", Price: 19.99},
	{ID: 2, Name: "Product B", Price: 29.99},
	{ID: 3, Name: "Product C", Price: 39.99},
}

// FindProduct looks a product up in the catalog.
func FindProduct(id int) (Product, bool) {
	i := slices.IndexFunc(Products, func(p Product) bool { return p.ID == id })
	if i < 0 {
		return Product{}, false
	}
	return Products[i], true
}

// CartItem is a product in the cart with its quantity.
type CartItem struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// CartState is the state of the cart store.
type CartState struct {
	Items []CartItem `json:"items"`
}

// TotalItems sums the quantities of all items.
func TotalItems(s CartState) int {
	total := 0
	for _, item := range s.Items {
		total += item.Quantity
	}
	return total
}

// TotalPrice sums price times quantity over all items.
func TotalPrice(s CartState) float64 {
	total := 0.0
	for _, item := range s.Items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// RoundCents rounds an amount to two decimals for display.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Cart is the shopping cart store. Every updater builds a new items slice so
// earlier snapshots are never modified.
type Cart struct {
	*store.Store[CartState]
}

// NewCart creates an empty cart.
func NewCart(opts ...store.Option) *Cart {
	opts = append([]store.Option{store.WithName("cart")}, opts...)
	return &Cart{Store: store.New(CartState{Items: []CartItem{}}, opts...)}
}

// AddItem increments the quantity of an item already in the cart, or adds
// the product with quantity one.
func (c *Cart) AddItem(p Product) {
	c.Set(func(s *CartState) {
		items := slices.Clone(s.Items)
		for i := range items {
			if items[i].ID == p.ID {
				items[i].Quantity++
				s.Items = items
				return
			}
		}
		s.Items = append(items, CartItem{ID: p.ID, Name: p.Name, Price: p.Price, Quantity: 1})
	})
}

// RemoveItem drops the item with the given id.
func (c *Cart) RemoveItem(id int) {
	c.Set(func(s *CartState) {
		s.Items = slices.DeleteFunc(slices.Clone(s.Items), func(item CartItem) bool {
			return item.ID == id
		})
	})
}

// UpdateQuantity sets the quantity of an item. A quantity of zero or less
// removes it.
func (c *Cart) UpdateQuantity(id, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(id)
		return
	}
	c.Set(func(s *CartState) {
		items := slices.Clone(s.Items)
		for i := range items {
			if items[i].ID == id {
				items[i].Quantity = quantity
			}
		}
		s.Items = items
	})
}

// ClearCart empties the cart.
func (c *Cart) ClearCart() {
	c.Set(func(s *CartState) { s.Items = []CartItem{} })
}

// TotalItems is TotalItems of the current snapshot.
func (c *Cart) TotalItems() int {
	return store.Select(c.Store, TotalItems)
}

// TotalPrice is TotalPrice of the current snapshot.
func (c *Cart) TotalPrice() float64 {
	return store.Select(c.Store, TotalPrice)
}
