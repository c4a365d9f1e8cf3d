package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/mediqueue/internal/appointment"
	"github.com/hackgods/mediqueue/internal/consultation"
	"github.com/hackgods/mediqueue/internal/directory"
	"github.com/hackgods/mediqueue/internal/queue"
)

type CreateAppointmentRequest struct {
	DoctorID  string `json:"doctor_id" validate:"required,uuid"`
	PatientID string `json:"patient_id" validate:"required,uuid"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Start     string `json:"start" validate:"required,datetime=15:04"`
}

type CreateConsultationRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required,uuid"`
	Symptoms      string `json:"symptoms" validate:"required,max=4000"`
	Prescription  string `json:"prescription" validate:"max=4000"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	Date        string    `json:"date"`
	SlotStart   time.Time `json:"slot_start"`
	SlotEnd     time.Time `json:"slot_end"`
	TokenNumber int       `json:"token_number"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		PatientID:   a.PatientID,
		DoctorID:    a.DoctorID,
		Date:        a.Date,
		SlotStart:   a.SlotStart,
		SlotEnd:     a.SlotEnd,
		TokenNumber: a.TokenNumber,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toAppointmentResponses(as []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(as))
	for i := range as {
		out = append(out, toAppointmentResponse(&as[i]))
	}
	return out
}

type SlotResponse struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Capacity  int       `json:"capacity"`
	Remaining int       `json:"remaining"`
}

type SlotsResponse struct {
	DoctorID uuid.UUID      `json:"doctor_id"`
	Date     string         `json:"date"`
	Slots    []SlotResponse `json:"slots"`
}

type TimeSlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type LiveQueueResponse struct {
	CurrentTime  time.Time             `json:"current_time"`
	DoctorID     uuid.UUID             `json:"doctor_id"`
	TimeSlot     *TimeSlotResponse     `json:"time_slot"`
	Appointments []AppointmentResponse `json:"appointments"`
	Count        int                   `json:"count"`
	Message      string                `json:"message,omitempty"`
}

func toLiveQueueResponse(l *queue.Live) LiveQueueResponse {
	resp := LiveQueueResponse{
		CurrentTime:  l.CurrentTime,
		DoctorID:     l.DoctorID,
		Appointments: toAppointmentResponses(l.Appointments),
		Count:        l.Count(),
		Message:      l.Message,
	}
	if l.Window != nil {
		resp.TimeSlot = &TimeSlotResponse{Start: l.Window.Start, End: l.Window.End}
	}
	return resp
}

type PatientStatusResponse struct {
	InQueue              bool                 `json:"inQueue"`
	PatientID            uuid.UUID            `json:"patientId"`
	QueueStatus          string               `json:"queueStatus,omitempty"`
	Position             *int                 `json:"position,omitempty"`
	AheadCount           *int                 `json:"aheadCount,omitempty"`
	EstimatedWaitMinutes *queue.WaitEstimate  `json:"estimatedWaitMinutes,omitempty"`
	Appointment          *AppointmentResponse `json:"appointment,omitempty"`
	Doctor               *DoctorResponse      `json:"doctor,omitempty"`
	ExpectedStartTime    *time.Time           `json:"expectedStartTime,omitempty"`
	LastUpdated          time.Time            `json:"lastUpdated"`
	Message              string               `json:"message,omitempty"`
}

func toPatientStatusResponse(st *queue.PatientStatus) PatientStatusResponse {
	resp := PatientStatusResponse{
		InQueue:     st.InQueue,
		PatientID:   st.PatientID,
		LastUpdated: st.LastUpdated,
		Message:     st.Message,
	}
	if !st.InQueue {
		return resp
	}

	position, ahead := st.Position, st.AheadCount
	wait := st.EstimatedWait
	expected := st.ExpectedStart
	appt := toAppointmentResponse(st.Appointment)

	resp.QueueStatus = st.QueueStatus
	resp.Position = &position
	resp.AheadCount = &ahead
	resp.EstimatedWaitMinutes = &wait
	resp.ExpectedStartTime = &expected
	resp.Appointment = &appt
	if st.Doctor != nil {
		d := toDoctorResponse(st.Doctor)
		resp.Doctor = &d
	}
	return resp
}

type DoctorResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	Availability   string    `json:"availability"`
	Contact        string    `json:"contact,omitempty"`
	SlotCapacity   int       `json:"slot_capacity,omitempty"`
}

func toDoctorResponse(d *directory.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:             d.ID,
		Name:           d.Name,
		Specialization: d.Specialization,
		Availability:   d.Availability.String(),
		Contact:        d.Contact,
		SlotCapacity:   d.SlotCapacity,
	}
}

type ConsultationResponse struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Symptoms      string    `json:"symptoms"`
	Prescription  string    `json:"prescription"`
	CreatedAt     time.Time `json:"created_at"`
}

func toConsultationResponse(c *consultation.Consultation) ConsultationResponse {
	return ConsultationResponse{
		ID:            c.ID,
		AppointmentID: c.AppointmentID,
		Symptoms:      c.Symptoms,
		Prescription:  c.Prescription,
		CreatedAt:     c.CreatedAt,
	}
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}
