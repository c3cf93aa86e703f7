package patient

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/registry/internal/label"
	"github.com/ehr/registry/internal/platform/auth"
	"github.com/ehr/registry/internal/platform/db"
	"github.com/ehr/registry/internal/platform/middleware"
	"github.com/ehr/registry/internal/printout"
	"github.com/ehr/registry/pkg/pagination"
)

const (
	mimeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimePDF      = "application/pdf"
	warningsHdr  = "X-Render-Warnings"
	maxAvatarLen = 10 << 20
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – registrar, nurse, physician, admin
	readGroup := api.Group("", auth.RequireRole(auth.ReadRoles...))
	readGroup.GET("/options", h.GetOptions)
	readGroup.GET("/drafts/new", h.NewDraft)
	readGroup.GET("/patients", h.ListPatients)
	readGroup.GET("/patients/search", h.SearchPatient)
	readGroup.GET("/patients/export.xlsx", h.ExportPatients)
	readGroup.GET("/patients/:id", h.GetPatient)
	readGroup.GET("/patients/:id/avatar", h.GetAvatar)
	readGroup.GET("/patients/:id/label.png", h.LabelPNG)
	readGroup.GET("/patients/:id/label.pdf", h.LabelPDF)
	readGroup.GET("/patients/:id/label/print", h.LabelPrint)
	readGroup.GET("/patients/:id/barcode.png", h.BarcodePNG)
	readGroup.GET("/patients/:id/barcode/print", h.BarcodePrint)
	readGroup.GET("/patients/:id/qr.png", h.QRCodePNG)

	// Write endpoints – registrar, admin
	writeGroup := api.Group("", auth.RequireRole(auth.WriteRoles...))
	writeGroup.POST("/phn", h.GeneratePHN)
	writeGroup.POST("/patients", h.RegisterPatient)
	writeGroup.PUT("/patients/:id", h.UpdatePatient)
	writeGroup.PUT("/patients/:id/avatar", h.PutAvatar)
	writeGroup.DELETE("/patients/:id/avatar", h.DeleteAvatar)
}

// -- Form support --

func (h *Handler) GetOptions(c echo.Context) error {
	return c.JSON(http.StatusOK, AllOptions())
}

func (h *Handler) NewDraft(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.NewDraft())
}

type phnRequest struct {
	NIC string `json:"nic"`
}

func (h *Handler) GeneratePHN(c echo.Context) error {
	var req phnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"phn": h.svc.GeneratePHN(req.NIC)})
}

// -- Patient --

type registerRequest struct {
	Patient
	// Avatar is a base64 JPEG or PNG stored with the record.
	Avatar []byte `json:"avatar,omitempty"`
	Crop   *Crop  `json:"crop,omitempty"`
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var avatar []byte
	if len(req.Avatar) > 0 {
		var err error
		if avatar, err = ProcessAvatar(req.Avatar, req.Crop); err != nil {
			return httpError(err)
		}
	}
	p := req.Patient
	if err := h.svc.RegisterPatient(c.Request().Context(), &p, avatar); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdatePatient(c.Request().Context(), &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	resp := pagination.NewResponse(patients, total, pg).WithLinks(c.Request().URL.Path, c.QueryParams())
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) SearchPatient(c echo.Context) error {
	by, ok := ParseSearchField(c.QueryParam("by"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "by must be one of phn, nic, name")
	}
	p, err := h.svc.FindPatient(c.Request().Context(), by, c.QueryParam("q"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ExportPatients(c echo.Context) error {
	patients, err := h.svc.AllPatients(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	var buf bytes.Buffer
	if err := WriteRegister(&buf, patients); err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="patients.xlsx"`)
	return c.Blob(http.StatusOK, mimeXLSX, buf.Bytes())
}

// -- Avatar --

// PutAvatar accepts a multipart "avatar" file or a raw image body. Optional
// left, top, right and bottom values crop the image first.
func (h *Handler) PutAvatar(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	crop, err := parseCrop(c)
	if err != nil {
		return err
	}
	upload, err := readUpload(c)
	if err != nil {
		return err
	}
	if err := h.svc.SetAvatar(c.Request().Context(), id, upload, crop); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteAvatar(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.ClearAvatar(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetAvatar(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	data, err := h.svc.Avatar(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.Blob(http.StatusOK, "image/jpeg", data)
}

// -- Labels --

func (h *Handler) LabelPNG(c echo.Context) error {
	r, err := h.renderLabel(c)
	if err != nil {
		return err
	}
	return sendPNG(c, r)
}

func (h *Handler) LabelPDF(c echo.Context) error {
	r, err := h.renderLabel(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := printout.WritePDF(&buf, r.PNG, printout.LabelWidthMM, printout.LabelHeightMM); err != nil {
		return httpError(err)
	}
	setWarnings(c, r)
	return c.Blob(http.StatusOK, mimePDF, buf.Bytes())
}

func (h *Handler) LabelPrint(c echo.Context) error {
	r, err := h.renderLabel(c)
	if err != nil {
		return err
	}
	return sendPrintPage(c, r)
}

func (h *Handler) BarcodePNG(c echo.Context) error {
	r, err := h.renderBarcode(c)
	if err != nil {
		return err
	}
	return sendPNG(c, r)
}

func (h *Handler) BarcodePrint(c echo.Context) error {
	r, err := h.renderBarcode(c)
	if err != nil {
		return err
	}
	return sendPrintPage(c, r)
}

func (h *Handler) QRCodePNG(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	size := 0
	if s := c.QueryParam("size"); s != "" {
		if size, err = strconv.Atoi(s); err != nil || size <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "size must be a positive integer")
		}
	}
	r, err := h.svc.QRCode(c.Request().Context(), id, size)
	if err != nil {
		return httpError(err)
	}
	return c.Blob(http.StatusOK, "image/png", r.PNG)
}

func (h *Handler) renderLabel(c echo.Context) (*Rendering, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	r, err := h.svc.Label(c.Request().Context(), id)
	if err != nil {
		return nil, httpError(err)
	}
	return r, nil
}

func (h *Handler) renderBarcode(c echo.Context) (*Rendering, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	r, err := h.svc.Barcode(c.Request().Context(), id)
	if err != nil {
		return nil, httpError(err)
	}
	return r, nil
}

// sendPNG serves the image inline, or as a barcode_<phn>.png download when
// ?download is set.
func sendPNG(c echo.Context, r *Rendering) error {
	disposition := "inline"
	if c.QueryParam("download") != "" {
		disposition = "attachment"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, disposition+`; filename="`+printout.FileName(r.PHN)+`"`)
	setWarnings(c, r)
	return c.Blob(http.StatusOK, "image/png", r.PNG)
}

func sendPrintPage(c echo.Context, r *Rendering) error {
	var buf bytes.Buffer
	if err := printout.WritePrintHTML(&buf, r.PHN, r.PNG); err != nil {
		return httpError(err)
	}
	c.Response().Header().Set("Content-Security-Policy", middleware.PrintPagePolicy)
	setWarnings(c, r)
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func setWarnings(c echo.Context, r *Rendering) {
	if n := len(r.Warnings); n > 0 {
		c.Response().Header().Set(warningsHdr, strconv.Itoa(n))
	}
}

// -- Helpers --

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func parseCrop(c echo.Context) (*Crop, error) {
	names := []string{"left", "top", "right", "bottom"}
	var vals [4]int
	present := false
	for i, name := range names {
		s := c.FormValue(name)
		if s == "" {
			continue
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer")
		}
		vals[i] = v
		present = true
	}
	if !present {
		return nil, nil
	}
	return &Crop{Left: vals[0], Top: vals[1], Right: vals[2], Bottom: vals[3]}, nil
}

func readUpload(c echo.Context) ([]byte, error) {
	if fh, err := c.FormFile("avatar"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		defer f.Close()
		return readLimited(f)
	}
	return readLimited(c.Request().Body)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxAvatarLen+1))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(data) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "avatar image is required")
	}
	if len(data) > maxAvatarLen {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "avatar image too large")
	}
	return data, nil
}

// httpError maps service errors onto HTTP statuses.
func httpError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]interface{}{
			"message": verr.Error(),
			"missing": verr.Missing,
		})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidImage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, label.ErrMissingPHN):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "patient has no PHN")
	case errors.Is(err, db.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}
