package report

import (
	"fmt"
	"strings"

	"github.com/xenking/nuestra-carne/internal/domain/order"
)

// Message renders the weekly summary sent to the owners over WhatsApp.
func Message(r *Weekly) string {
	var b strings.Builder

	b.WriteString("🥩 *REPORTE SEMANAL - NUESTRA CARNE*\n")
	b.WriteString(r.Period.Description + "\n\n")

	b.WriteString("📊 *RESUMEN GENERAL*\n")
	fmt.Fprintf(&b, "• Total de pedidos: %d\n", r.Summary.TotalOrders)
	fmt.Fprintf(&b, "• Ingresos totales: $%s\n", r.Summary.TotalRevenue.StringFixed(2))
	fmt.Fprintf(&b, "• Ticket promedio: $%s\n\n", r.Summary.AverageOrderValue.StringFixed(2))

	b.WriteString("🥩 *CORTES MÁS VENDIDOS*\n")
	for i, p := range r.TopProducts {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "%d. %s - %s unidades ($%s)\n", i+1, p.Name, p.Quantity.String(), p.Revenue.StringFixed(2))
	}
	b.WriteString("\n")

	b.WriteString("👥 *MEJORES CLIENTES*\n")
	for i, c := range r.TopCustomers {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "%d. %s - %d pedidos ($%s)\n", i+1, c.Name, c.Orders, c.Spent.StringFixed(2))
	}
	b.WriteString("\n")

	status := r.Summary.OrdersByStatus
	b.WriteString("📈 *ESTADO DE PEDIDOS*\n")
	fmt.Fprintf(&b, "• Pendientes: %d\n", status[order.StatusPending])
	fmt.Fprintf(&b, "• En proceso: %d\n", status[order.StatusProcessing])
	fmt.Fprintf(&b, "• Entregados: %d\n\n", status[order.StatusDelivered])

	b.WriteString("🔗 Ver reporte completo en el admin")
	return b.String()
}
