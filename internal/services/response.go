package services

import (
	"net/http"

	"github.com/Lllllllleong/pdftoolkit/internal/failure"
	"github.com/Lllllllleong/pdftoolkit/internal/models"
)

// StatusCode maps an operation error to the HTTP status of the function
// response.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	fe, ok := failure.As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch {
	case fe.Reason == failure.ReasonNotFound:
		return http.StatusNotFound
	case fe.Kind == failure.InvalidArgument, fe.Kind == failure.PageRange:
		return http.StatusBadRequest
	case fe.Kind == failure.DecryptionFailed:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// NewResponse builds the function response body for a result or an error.
func NewResponse(res *models.OperationResult, err error) *models.OperationResponse {
	if err != nil {
		resp := &models.OperationResponse{
			Status:    models.StatusFailed,
			ErrorKind: failure.KindOf(err).String(),
			Message:   err.Error(),
			ExitCode:  failure.ExitCode(err),
		}
		if fe, ok := failure.As(err); ok {
			resp.Message = fe.Message
		}
		return resp
	}
	return &models.OperationResponse{
		Status:            models.StatusSuccess,
		RequestID:         res.RequestID,
		Output:            res.Output,
		WorkflowExecution: res.WorkflowExecution,
	}
}
