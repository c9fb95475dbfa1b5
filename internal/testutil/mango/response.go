package mango

import (
	"encoding/json"
	"net/http"

	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
)

// RespondJSONObjectWithCode writes the object and status header to the response.
func RespondJSONObjectWithCode(w http.ResponseWriter, code int, obj interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	var jsonBytes []byte
	if obj != nil {
		var err error
		if jsonBytes, err = json.Marshal(obj); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(code)
	if jsonBytes != nil {
		w.Write(jsonBytes)
	}
}

func RespondWithError(w http.ResponseWriter, code int, statusName, message string) {
	RespondJSONObjectWithCode(w, code, modelError(statusName, message))
}

func modelError(statusName, message string) m.ModelError {
	return m.ModelError{MangoStatusName: statusName, LocalizedMessage: message}
}
