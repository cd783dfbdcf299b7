package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/nuestra-carne/internal/domain/order"
)

// RecentOrdersLimit is the number of orders listed on the dashboard.
const RecentOrdersLimit = 5

// RecentOrder is a dashboard listing entry.
type RecentOrder struct {
	ID       string          `json:"id"`
	Customer string          `json:"cliente"`
	Total    decimal.Decimal `json:"total"`
	Status   order.Status    `json:"estado"`
	Date     time.Time       `json:"fecha"`
}

// SalesByPeriod holds revenue over rolling calendar periods.
type SalesByPeriod struct {
	Today     decimal.Decimal `json:"today"`
	ThisWeek  decimal.Decimal `json:"thisWeek"`
	ThisMonth decimal.Decimal `json:"thisMonth"`
	LastMonth decimal.Decimal `json:"lastMonth"`
}

// Stats is the admin dashboard summary over every stored order.
type Stats struct {
	TotalOrders     int             `json:"totalOrders"`
	CompletedOrders int             `json:"completedOrders"`
	ActiveOrders    int             `json:"activeOrders"`
	TodayOrders     int             `json:"todayOrders"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	TopProducts     []ProductSales  `json:"topProducts"`
	RecentOrders    []RecentOrder   `json:"recentOrders"`
	OrdersByStatus  StatusCounts    `json:"ordersByStatus"`
	SalesByPeriod   SalesByPeriod   `json:"salesByPeriod"`
}

// Stats computes the dashboard summary at now. "This week" covers the seven
// days before today's midnight onward; months are calendar months.
func (a *Aggregator) Stats(orders []order.Order, now time.Time) *Stats {
	todayStart := a.startOfDay(now)
	weekStart := todayStart.AddDate(0, 0, -7)
	monthStart := time.Date(todayStart.Year(), todayStart.Month(), 1, 0, 0, 0, 0, a.loc)
	lastMonthStart := monthStart.AddDate(0, -1, 0)
	today := a.dayKey(now)

	st := &Stats{
		TotalOrders:    len(orders),
		TotalRevenue:   decimal.Zero,
		TopProducts:    topProducts(orders, false),
		OrdersByStatus: newStatusCounts(),
		SalesByPeriod: SalesByPeriod{
			Today:     decimal.Zero,
			ThisWeek:  decimal.Zero,
			ThisMonth: decimal.Zero,
			LastMonth: decimal.Zero,
		},
	}

	for _, o := range orders {
		switch {
		case o.Status == order.StatusDelivered:
			st.CompletedOrders++
		case !o.Status.Terminal():
			st.ActiveOrders++
		}
		if _, ok := st.OrdersByStatus[o.Status]; ok {
			st.OrdersByStatus[o.Status]++
		}
		if a.dayKey(o.CreatedAt) == today {
			st.TodayOrders++
		}
		st.TotalRevenue = st.TotalRevenue.Add(o.Total)

		at := o.CreatedAt
		sp := &st.SalesByPeriod
		if !at.Before(todayStart) {
			sp.Today = sp.Today.Add(o.Total)
		}
		if !at.Before(weekStart) {
			sp.ThisWeek = sp.ThisWeek.Add(o.Total)
		}
		if !at.Before(monthStart) {
			sp.ThisMonth = sp.ThisMonth.Add(o.Total)
		}
		if !at.Before(lastMonthStart) && at.Before(monthStart) {
			sp.LastMonth = sp.LastMonth.Add(o.Total)
		}
	}

	recent := make([]order.Order, len(orders))
	copy(recent, orders)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > RecentOrdersLimit {
		recent = recent[:RecentOrdersLimit]
	}
	st.RecentOrders = make([]RecentOrder, 0, len(recent))
	for _, o := range recent {
		st.RecentOrders = append(st.RecentOrders, RecentOrder{
			ID:       o.ID,
			Customer: o.Customer.Name,
			Total:    o.Total,
			Status:   o.Status,
			Date:     o.CreatedAt,
		})
	}
	return st
}
