package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"

	"github.com/ginjaninja78/separador/internal/converter"
	"github.com/ginjaninja78/separador/internal/decoder"
	"github.com/ginjaninja78/separador/internal/logging"
	"github.com/ginjaninja78/separador/internal/validation"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleIndex serves the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "página indisponível")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

type healthResponse struct {
	Status string `json:"status"`
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{Status: "ok"})
}

// handleProcess filters one uploaded spreadsheet and returns the result as
// a download.
//
// Form fields:
//   - file: the spreadsheet
//   - mes:  wanted month, repeated or comma separated
//   - ano:  wanted year
//   - nome: optional download name
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "arquivo muito grande ou formulário inválido")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "nenhum arquivo enviado")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "falha ao ler o arquivo enviado")
		return
	}

	months, err := parseMonths(r.MultipartForm.Value["mes"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	year, err := parseYear(r.FormValue("ano"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	req := converter.Request{
		Data:       data,
		Filename:   header.Filename,
		Months:     months,
		Year:       year,
		OutputName: strings.TrimSpace(r.FormValue("nome")),
	}
	logger := logging.WithFields(ctx,
		"file", header.Filename,
		"bytes", len(data),
		"months", converter.MonthsLabel(months),
		"year", year,
	)

	res, err := s.pipeline.Run(ctx, req)
	if err != nil {
		s.metrics.ObserveRun("http", converter.Report{}, err)
		status, msg := errorResponse(err)
		logger.Warn("upload rejected", "status", status, "error", err)
		writeError(w, r, status, msg)
		return
	}
	s.metrics.ObserveRun("http", res.Report, nil)
	logger.Info("upload filtered", "report", res.Report)

	name := req.OutputFileName()
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Content)))
	w.Header().Set("X-Rows-Emitted", strconv.Itoa(len(res.Rows)))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Content)
}

// errorResponse maps a pipeline error to a status and a message for the
// upload page.
func errorResponse(err error) (int, string) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest, "parâmetros inválidos: " + verrs.Error()
	case errors.Is(err, decoder.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "formato de arquivo não suportado"
	default:
		return http.StatusInternalServerError, "falha ao processar o arquivo"
	}
}

// parseMonths accepts "9" as well as "9,10" in each value.
func parseMonths(values []string) ([]int, error) {
	var months []int
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			m, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("mês inválido: %q", part)
			}
			months = append(months, m)
		}
	}
	return months, nil
}

// parseYear leaves an empty value to request validation.
func parseYear(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("ano inválido: %q", v)
	}
	return year, nil
}

// writeError answers in plain text; the upload page shows the body as is.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.PlainText(w, r, msg)
}
