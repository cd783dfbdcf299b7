package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/nuestra-carne/internal/domain/order"
)

// Ranking sizes.
const (
	TopProductsLimit  = 10
	TopCustomersLimit = 5
)

// Placeholders used when a stored order lacks customer data.
const (
	unknownName  = "Sin nombre"
	unknownPhone = "Sin teléfono"
	unknownEmail = "Sin email"
)

// StatusCounts maps every lifecycle state to a number of orders.
type StatusCounts map[order.Status]int

func newStatusCounts() StatusCounts {
	c := make(StatusCounts, len(order.Statuses))
	for _, s := range order.Statuses {
		c[s] = 0
	}
	return c
}

// Summary holds the headline figures of a window.
type Summary struct {
	TotalOrders       int             `json:"totalOrders"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
	OrdersByStatus    StatusCounts    `json:"ordersByStatus"`
}

// ProductSales aggregates line items of a single product.
type ProductSales struct {
	Code     string          `json:"codigo"`
	Name     string          `json:"nombre"`
	Quantity decimal.Decimal `json:"cantidad"`
	Revenue  decimal.Decimal `json:"ingresos"`
	Orders   int             `json:"pedidos,omitempty"`
}

// PurchasedProduct is a line bought by a customer.
type PurchasedProduct struct {
	Name     string          `json:"nombre"`
	Quantity decimal.Decimal `json:"cantidad"`
	Unit     string          `json:"unidad,omitempty"`
}

// CustomerSummary aggregates the orders of one customer, identified by name
// and phone.
type CustomerSummary struct {
	Name     string             `json:"nombre"`
	Phone    string             `json:"telefono"`
	Email    string             `json:"email"`
	Orders   int                `json:"pedidos"`
	Spent    decimal.Decimal    `json:"totalGastado"`
	Products []PurchasedProduct `json:"productos"`
}

// DailyBucket holds the figures of one calendar day.
type DailyBucket struct {
	Date      string          `json:"fecha"`
	Orders    int             `json:"pedidos"`
	Revenue   decimal.Decimal `json:"ingresos"`
	LineItems int             `json:"productos"`
}

// CustomerContact is the customer excerpt of an order detail.
type CustomerContact struct {
	Name  string `json:"nombre"`
	Phone string `json:"telefono"`
	Email string `json:"email"`
}

// OrderDetail is the per-order listing of a report.
type OrderDetail struct {
	ID        string           `json:"id"`
	Date      time.Time        `json:"fecha"`
	Customer  CustomerContact  `json:"cliente"`
	LineItems []order.LineItem `json:"productos"`
	Total     decimal.Decimal  `json:"total"`
	Status    order.Status     `json:"estado"`
}

// Weekly is a derived report over one Saturday to Friday window. It is never
// persisted.
type Weekly struct {
	ID            string            `json:"reportId"`
	GeneratedAt   time.Time         `json:"generatedAt"`
	Period        Period            `json:"period"`
	Summary       Summary           `json:"summary"`
	TopProducts   []ProductSales    `json:"topProducts"`
	TopCustomers  []CustomerSummary `json:"topCustomers"`
	DailyAnalysis []DailyBucket     `json:"dailyAnalysis"`
	OrderDetails  []OrderDetail     `json:"orderDetails"`
}

// Generate builds the weekly report for the window containing ref from the
// full order collection. Rankings are stable: ties keep first-seen order.
func (a *Aggregator) Generate(orders []order.Order, ref, now time.Time) *Weekly {
	period := a.WeekRange(ref)

	var window []order.Order
	for _, o := range orders {
		if period.Contains(o.CreatedAt) {
			window = append(window, o)
		}
	}

	r := &Weekly{
		ID:            period.ID(),
		GeneratedAt:   now,
		Period:        period,
		Summary:       summarize(window),
		TopProducts:   topProducts(window, true),
		TopCustomers:  topCustomers(window),
		DailyAnalysis: a.daily(window, period),
		OrderDetails:  make([]OrderDetail, 0, len(window)),
	}
	for _, o := range window {
		r.OrderDetails = append(r.OrderDetails, OrderDetail{
			ID:   o.ID,
			Date: o.CreatedAt,
			Customer: CustomerContact{
				Name:  o.Customer.Name,
				Phone: o.Customer.Phone,
				Email: o.Customer.Email,
			},
			LineItems: o.LineItems,
			Total:     o.Total,
			Status:    o.Status,
		})
	}
	return r
}

func summarize(orders []order.Order) Summary {
	s := Summary{
		TotalOrders:       len(orders),
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		OrdersByStatus:    newStatusCounts(),
	}
	for _, o := range orders {
		s.TotalRevenue = s.TotalRevenue.Add(o.Total)
		if _, ok := s.OrdersByStatus[o.Status]; ok {
			s.OrdersByStatus[o.Status]++
		}
	}
	if s.TotalOrders > 0 {
		s.AverageOrderValue = s.TotalRevenue.Div(decimal.NewFromInt(int64(s.TotalOrders))).Round(2)
	}
	return s
}

// topProducts groups line items by product code, falling back to the name,
// and ranks them by quantity sold.
func topProducts(orders []order.Order, countOrders bool) []ProductSales {
	index := make(map[string]int)
	var sales []ProductSales
	for _, o := range orders {
		for _, item := range o.LineItems {
			key := item.ProductCode
			if key == "" {
				key = item.ProductName
			}
			i, ok := index[key]
			if !ok {
				i = len(sales)
				index[key] = i
				sales = append(sales, ProductSales{
					Code:     item.ProductCode,
					Name:     item.ProductName,
					Quantity: decimal.Zero,
					Revenue:  decimal.Zero,
				})
			}
			qty := item.Quantity
			if qty.IsZero() {
				qty = decimal.NewFromInt(1)
			}
			sales[i].Quantity = sales[i].Quantity.Add(qty)
			sales[i].Revenue = sales[i].Revenue.Add(item.LineSubtotal)
			if countOrders {
				sales[i].Orders++
			}
		}
	}

	sort.SliceStable(sales, func(i, j int) bool {
		return sales[i].Quantity.GreaterThan(sales[j].Quantity)
	})
	if len(sales) > TopProductsLimit {
		sales = sales[:TopProductsLimit]
	}
	if sales == nil {
		sales = []ProductSales{}
	}
	return sales
}

func topCustomers(orders []order.Order) []CustomerSummary {
	type key struct{ name, phone string }
	index := make(map[key]int)
	var customers []CustomerSummary
	for _, o := range orders {
		k := key{name: o.Customer.Name, phone: o.Customer.Phone}
		if k.name == "" {
			k.name = unknownName
		}
		if k.phone == "" {
			k.phone = unknownPhone
		}
		i, ok := index[k]
		if !ok {
			email := o.Customer.Email
			if email == "" {
				email = unknownEmail
			}
			i = len(customers)
			index[k] = i
			customers = append(customers, CustomerSummary{
				Name:     k.name,
				Phone:    k.phone,
				Email:    email,
				Spent:    decimal.Zero,
				Products: []PurchasedProduct{},
			})
		}
		c := &customers[i]
		c.Orders++
		c.Spent = c.Spent.Add(o.Total)
		for _, item := range o.LineItems {
			c.Products = append(c.Products, PurchasedProduct{
				Name:     item.ProductName,
				Quantity: item.Quantity,
				Unit:     item.Unit,
			})
		}
	}

	sort.SliceStable(customers, func(i, j int) bool {
		return customers[i].Spent.GreaterThan(customers[j].Spent)
	})
	if len(customers) > TopCustomersLimit {
		customers = customers[:TopCustomersLimit]
	}
	if customers == nil {
		customers = []CustomerSummary{}
	}
	return customers
}

// daily pre-seeds one bucket per day of the window so empty days still
// appear.
func (a *Aggregator) daily(orders []order.Order, period Period) []DailyBucket {
	buckets := make([]DailyBucket, 0, 7)
	index := make(map[string]int, 7)
	for day := period.Start; !day.After(period.End); day = day.AddDate(0, 0, 1) {
		k := a.dayKey(day)
		index[k] = len(buckets)
		buckets = append(buckets, DailyBucket{Date: k, Revenue: decimal.Zero})
	}
	for _, o := range orders {
		i, ok := index[a.dayKey(o.CreatedAt)]
		if !ok {
			continue
		}
		buckets[i].Orders++
		buckets[i].Revenue = buckets[i].Revenue.Add(o.Total)
		buckets[i].LineItems += len(o.LineItems)
	}
	return buckets
}
