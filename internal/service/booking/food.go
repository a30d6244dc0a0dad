package booking

import "github.com/hoangtm/cinebook/internal/domain"

// The concession catalog ships with the gateway rather than the upstream:
// the cinema API has no food endpoints, and the stand's menu changes rarely
// enough that a redeploy is acceptable. Prices are VND.
var foodCatalog = []domain.FoodItem{
	{ID: 1, Name: "Combo 1 (Bỏng + Nước)", Price: 89000, Category: domain.FoodCombo},
	{ID: 2, Name: "Combo 2 (Bỏng + 2 Nước)", Price: 129000, Category: domain.FoodCombo},
	{ID: 3, Name: "Combo Family", Price: 199000, Category: domain.FoodCombo},
	{ID: 4, Name: "Bỏng ngô lớn", Price: 60000, Category: domain.FoodSnack},
	{ID: 5, Name: "Bỏng ngô vừa", Price: 45000, Category: domain.FoodSnack},
	{ID: 6, Name: "Hotdog", Price: 35000, Category: domain.FoodSnack},
	{ID: 7, Name: "Nachos", Price: 45000, Category: domain.FoodSnack},
	{ID: 8, Name: "Coca Cola", Price: 30000, Category: domain.FoodDrink},
	{ID: 9, Name: "Pepsi", Price: 30000, Category: domain.FoodDrink},
	{ID: 10, Name: "Nước suối", Price: 15000, Category: domain.FoodDrink},
}

// FoodCatalog returns the full concession menu.
func (s *Service) FoodCatalog() []domain.FoodItem {
	out := make([]domain.FoodItem, len(foodCatalog))
	copy(out, foodCatalog)
	return out
}

func foodItem(id int64) (domain.FoodItem, bool) {
	for _, it := range foodCatalog {
		if it.ID == id {
			return it, true
		}
	}
	return domain.FoodItem{}, false
}

func foodTotal(lines map[int64]int) int64 {
	var total int64
	for id, qty := range lines {
		if it, ok := foodItem(id); ok {
			total += it.Price * int64(qty)
		}
	}
	return total
}
