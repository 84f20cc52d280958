package main

import (
	"github.com/erfan-mirasadi/menu-3d/internal/model"
	"github.com/erfan-mirasadi/menu-3d/internal/repository"
)

const demoRestaurant = "demo"

// seedDemo gives STORE_DRIVER=memory a small restaurant to order from.
func seedDemo(s *repository.MemoryStore) {
	for _, t := range []model.Table{
		{ID: "demo-t1", RestaurantID: demoRestaurant, Label: "1"},
		{ID: "demo-t2", RestaurantID: demoRestaurant, Label: "2"},
		{ID: "demo-t3", RestaurantID: demoRestaurant, Label: "3"},
		{ID: "demo-terrace", RestaurantID: demoRestaurant, Label: "Terrace"},
	} {
		s.AddTable(t)
	}
	for _, p := range []model.Product{
		{ID: "demo-burger", RestaurantID: demoRestaurant, Name: "Burger", Price: 1250, Available: true},
		{ID: "demo-fries", RestaurantID: demoRestaurant, Name: "Fries", Price: 450, Available: true},
		{ID: "demo-salad", RestaurantID: demoRestaurant, Name: "Garden salad", Price: 890, Available: true},
		{ID: "demo-soda", RestaurantID: demoRestaurant, Name: "Soda", Price: 300, Available: true},
		{ID: "demo-special", RestaurantID: demoRestaurant, Name: "Chef's special", Price: 2400, Available: false},
	} {
		s.AddProduct(p)
	}
}
