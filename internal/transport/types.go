package transport

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rsandoval/gridwatch/internal/domain/audit"
	"github.com/rsandoval/gridwatch/internal/domain/device"
)

// RegisterValidators installs custom binding rules on gin's validator.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("shift", func(fl validator.FieldLevel) bool {
			return audit.ValidShift(fl.Field().String())
		})
	}
}

// checklistKey carries the natural key of an audit run, bound from either
// the JSON body or the query string.
type checklistKey struct {
	Date      string `json:"date" form:"date" binding:"required,datetime=2006-01-02"`
	CentralID string `json:"central_id" form:"central_id" binding:"required"`
	Shift     string `json:"shift" form:"shift" binding:"required,shift"`
}

func (k checklistKey) domain() audit.ChecklistKey {
	return audit.ChecklistKey{Date: k.Date, CentralID: k.CentralID, Shift: k.Shift}
}

type openRequest struct {
	checklistKey
	Supervisor string `json:"supervisor"`
}

type flushRequest struct {
	checklistKey
	Zone string `json:"zone" form:"zone"`
}

type scopeQuery struct {
	checklistKey
	Zone string `form:"zone"`
}

type operationalRequest struct {
	checklistKey
	Operational *bool `json:"operational" binding:"required"`
}

type qualityRequest struct {
	checklistKey
	Quality int `json:"quality" binding:"required,min=1,max=5"`
}

type toggleRequest struct {
	checklistKey
	Operational *bool `json:"operational" binding:"required"`
	Quality     *int  `json:"quality" binding:"omitempty,min=1,max=5"`
}

type registerDeviceRequest struct {
	Code      string `json:"code" binding:"required"`
	CentralID string `json:"central_id" binding:"required"`
	Zone      string `json:"zone" binding:"required"`
}

type reportIncidentRequest struct {
	DeviceID    string `json:"device_id" binding:"required"`
	Category    string `json:"category" binding:"required"`
	Description string `json:"description" binding:"required"`
}

type listIncidentsQuery struct {
	DeviceID        string `form:"device_id"`
	From            string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To              string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	IncludeResolved bool   `form:"include_resolved"`
	Limit           int    `form:"limit"`
	Offset          int    `form:"offset"`
}

type deviceQuery struct {
	CentralID string `form:"central_id" binding:"required"`
	Zone      string `form:"zone"`
}

// scopeRow is one device in the effective-judgment view.
type scopeRow struct {
	Device        device.Device  `json:"device"`
	Judgment      audit.Judgment `json:"judgment"`
	OpenIncidents int            `json:"open_incidents"`
}
