package httpapi

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/nuestra-carne/internal/domain/report"
)

type reportResponse struct {
	Success bool           `json:"success"`
	Report  *report.Weekly `json:"report"`
}

type historyResponse struct {
	Success bool                  `json:"success"`
	Reports []report.HistoryEntry `json:"reports"`
}

type sendResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	ReportID        string `json:"reportId"`
	WhatsAppMessage string `json:"whatsappMessage"`
	Delivered       bool   `json:"delivered"`
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request, ref time.Time) (*report.Weekly, bool) {
	orders, err := s.orders.All(r.Context())
	if err != nil {
		internalError(w, r, err, "", nil)
		return nil, false
	}
	return s.reports.Generate(orders, ref, s.now()), true
}

func (s *Server) weeklyReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.generate(w, r, s.now())
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, reportResponse{Success: true, Report: rep})
}

func (s *Server) weeklyReportFor(w http.ResponseWriter, r *http.Request) {
	ref, err := s.reports.ParseDate(r.PathValue("date"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Fecha inválida", "", nil)
		return
	}
	rep, ok := s.generate(w, r, ref)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, reportResponse{Success: true, Report: rep})
}

func (s *Server) reportHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, historyResponse{
		Success: true,
		Reports: s.reports.History(s.now(), report.DefaultHistoryWeeks),
	})
}

// sendWeeklyReport renders the current week's summary and publishes it. A
// publishing failure still returns the rendered text so the admin can send
// it by hand.
func (s *Server) sendWeeklyReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rep, ok := s.generate(w, r, s.now())
	if !ok {
		return
	}
	text := report.Message(rep)

	resp := sendResponse{
		Success:         true,
		Message:         "Reporte enviado exitosamente",
		ReportID:        rep.ID,
		WhatsAppMessage: text,
		Delivered:       true,
	}
	if err := s.publisher.WeeklyReport(ctx, rep, text); err != nil {
		s.metrics.notificationFailed(ctx, "report")
		zctx.From(ctx).Error("Weekly report publish failed", zap.String("report_id", rep.ID), zap.Error(err))
		resp.Delivered = false
		resp.Message = "Reporte generado, pero no se pudo enviar. Copia el mensaje y envíalo manualmente."
	}
	writeJSON(w, r, http.StatusOK, resp)
}
