/**
 * @description
 * HTTP handlers for customers and employees. Handlers decode the request,
 * resolve the caller and the expected version, call the read or write service
 * and render the result. Every failure goes through writeError.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: path parameters.
 * - internal/app: read and write services.
 */

package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/omnixys/omnixys-person-service/internal/app"
	"github.com/omnixys/omnixys-person-service/internal/domain"
	"github.com/omnixys/omnixys-person-service/internal/logging"
)

// PersonHandlers holds the services the handlers call.
type PersonHandlers struct {
	writer *app.WriteService
	reader *app.ReadService
	log    logrus.FieldLogger
}

func NewPersonHandlers(writer *app.WriteService, reader *app.ReadService, logger logrus.FieldLogger) *PersonHandlers {
	if logger == nil {
		logger = logging.Nop()
	}
	return &PersonHandlers{writer: writer, reader: reader, log: logger}
}

type createdResponse struct {
	ID string `json:"id"`
}

type updateCustomerRequest struct {
	Version *int `json:"version,omitempty"`
	app.UpdateCustomerInput
}

type updateEmployeeRequest struct {
	Version *int `json:"version,omitempty"`
	app.UpdateEmployeeInput
}

type updatePasswordRequest struct {
	Password string `json:"password"`
}

func (h *PersonHandlers) logger(r *http.Request) logrus.FieldLogger {
	return logging.FromContext(r.Context(), h.log)
}

// handleCreateCustomer is public: self sign-up.
func (h *PersonHandlers) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var in app.CreateCustomerInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	created, err := h.writer.CreateCustomer(r.Context(), in)
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	h.logger(r).WithFields(logrus.Fields{"person_id": created.ID, "username": created.Username}).Info("customer created")
	w.Header().Set("Location", "/customers/"+created.ID.String())
	setETag(w, created.Version)
	writeJSON(w, http.StatusCreated, createdResponse{ID: created.ID.String()})
}

func (h *PersonHandlers) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	var in app.CreateEmployeeInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	created, err := h.writer.CreateEmployee(r.Context(), in)
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	h.logger(r).WithFields(logrus.Fields{"person_id": created.ID, "username": created.Username}).Info("employee created")
	w.Header().Set("Location", "/employees/"+created.ID.String())
	setETag(w, created.Version)
	writeJSON(w, http.StatusCreated, createdResponse{ID: created.ID.String()})
}

func (h *PersonHandlers) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	h.getPerson(w, r, domain.PersonTypeCustomer)
}

func (h *PersonHandlers) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	h.getPerson(w, r, domain.PersonTypeEmployee)
}

func (h *PersonHandlers) getPerson(w http.ResponseWriter, r *http.Request, kind domain.PersonType) {
	caller, _ := CallerFrom(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	person, err := h.reader.FindByID(r.Context(), id, kind, caller)
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	tag := etag(person.Version)
	if strings.TrimSpace(r.Header.Get("If-None-Match")) == tag {
		w.Header().Set("ETag", tag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", tag)
	writeJSON(w, http.StatusOK, person)
}

func (h *PersonHandlers) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	h.listPersons(w, r, domain.PersonTypeCustomer)
}

func (h *PersonHandlers) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	h.listPersons(w, r, domain.PersonTypeEmployee)
}

func (h *PersonHandlers) listPersons(w http.ResponseWriter, r *http.Request, kind domain.PersonType) {
	caller, _ := CallerFrom(r.Context())
	query, err := personQuery(r, kind)
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	persons, err := h.reader.Find(r.Context(), query, caller)
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	writeJSON(w, http.StatusOK, persons)
}

func (h *PersonHandlers) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	var req updateCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	version, err := requestVersion(r, req.Version)
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	updated, err := h.writer.UpdateCustomer(r.Context(), id, version, req.UpdateCustomerInput, caller)
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	setETag(w, updated.Version)
	writeJSON(w, http.StatusOK, updated)
}

func (h *PersonHandlers) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	var req updateEmployeeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	version, err := requestVersion(r, req.Version)
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	updated, err := h.writer.UpdateEmployee(r.Context(), id, version, req.UpdateEmployeeInput, caller)
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	setETag(w, updated.Version)
	writeJSON(w, http.StatusOK, updated)
}

func (h *PersonHandlers) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	h.deletePerson(w, r, domain.PersonTypeCustomer)
}

func (h *PersonHandlers) handleDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	h.deletePerson(w, r, domain.PersonTypeEmployee)
}

func (h *PersonHandlers) deletePerson(w http.ResponseWriter, r *http.Request, kind domain.PersonType) {
	caller, _ := CallerFrom(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	fallback, err := queryVersion(r, "version")
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	version, err := requestVersion(r, fallback)
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	if kind == domain.PersonTypeEmployee {
		err = h.writer.DeleteEmployee(r.Context(), id, version, caller)
	} else {
		err = h.writer.DeleteCustomer(r.Context(), id, version, caller)
	}
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	h.logger(r).WithFields(logrus.Fields{"person_id": id, "person_type": kind}).Info("person deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *PersonHandlers) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	var req updatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	if err := h.writer.UpdatePassword(r.Context(), req.Password, caller); err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &domain.InvalidArgumentError{Message: "invalid id " + raw}
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &domain.InvalidArgumentError{Message: "invalid request body: " + err.Error()}
	}
	return nil
}
