package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/omnixys/omnixys-person-service/internal/app"
	"github.com/omnixys/omnixys-person-service/internal/domain"
)

type updateContactRequest struct {
	Version *int `json:"version,omitempty"`
	app.ContactUpdateInput
}

func (h *PersonHandlers) handleListContacts(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	customerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	contacts, err := h.reader.FindContacts(r.Context(), customerID, caller)
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	if contacts == nil {
		contacts = []domain.Contact{}
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (h *PersonHandlers) handleAddContact(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	customerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	var in app.ContactInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	contactID, err := h.writer.AddContact(r.Context(), customerID, in, caller)
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	h.logger(r).WithFields(logrus.Fields{"customer_id": customerID, "contact_id": contactID}).Info("contact added")
	w.Header().Set("Location", "/customers/"+customerID.String()+"/contacts/"+contactID.String())
	setETag(w, 0)
	writeJSON(w, http.StatusCreated, createdResponse{ID: contactID.String()})
}

func (h *PersonHandlers) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	customerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	contactID, err := pathID(r, "contactID")
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	var req updateContactRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	version, err := requestVersion(r, req.Version)
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}

	updated, err := h.writer.UpdateContact(r.Context(), customerID, contactID, version, req.ContactUpdateInput, caller)
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	setETag(w, updated.Version)
	writeJSON(w, http.StatusOK, updated)
}

// handleRemoveContact needs both versions: the contact's in If-Match (or
// ?version=) and the customer's in ?customerVersion=.
func (h *PersonHandlers) handleRemoveContact(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	customerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	contactID, err := pathID(r, "contactID")
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	fallback, err := queryVersion(r, "version")
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	contactVersion, err := requestVersion(r, fallback)
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	customerVersion, err := queryVersion(r, "customerVersion")
	if err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	if customerVersion == nil {
		writeError(w, h.logger(r), &domain.InvalidArgumentError{Message: "customerVersion query parameter required"})
		return
	}

	if _, err := h.writer.RemoveContact(r.Context(), customerID, contactID, contactVersion, *customerVersion, caller); err != nil {
		writeError(w, h.logger(r), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
