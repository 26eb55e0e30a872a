package internal_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/frahmantamala/maintenance-management/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("AppError", func() {
	It("is found through wrapping", func() {
		err := fmt.Errorf("load task: %w", internal.NewNotFoundError("Task not found", internal.ErrCodeTaskNotFound))

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(http.StatusNotFound))
		Expect(internal.IsType(err, internal.ErrorTypeNotFound)).To(BeTrue())
		Expect(internal.IsType(errors.New("plain"), internal.ErrorTypeNotFound)).To(BeFalse())
	})

	It("renders the envelope without the cause", func() {
		err := internal.NewInternalError("failed to save task", errors.New("pq: connection reset"))
		status, body := err.ToHTTPResponse()
		Expect(status).To(Equal(http.StatusInternalServerError))

		out, marshalErr := json.Marshal(body)
		Expect(marshalErr).NotTo(HaveOccurred())
		Expect(string(out)).To(MatchJSON(`{"error":{"type":"INTERNAL_ERROR","code":"INTERNAL_ERROR","message":"failed to save task"}}`))
		Expect(err.Error()).To(ContainSubstring("connection reset"))
		Expect(errors.Unwrap(err)).To(MatchError("pq: connection reset"))
	})

	It("carries field details for validation failures", func() {
		err := internal.NewValidationFieldError("quantity", "Quantity must be positive", internal.ErrCodeInvalidQuantity)

		Expect(err.Code).To(Equal(internal.ErrCodeValidationFailed))
		Expect(err.Error()).To(Equal("Quantity must be positive"))

		details, ok := err.Details.(internal.ValidationErrors)
		Expect(ok).To(BeTrue())
		Expect(details.Errors[0].Field).To(Equal("quantity"))
		Expect(details.Errors[0].Code).To(Equal(string(internal.ErrCodeInvalidQuantity)))
	})

	DescribeTable("maps kinds to status codes",
		func(err *internal.AppError, status int) {
			Expect(err.StatusCode).To(Equal(status))
		},
		Entry("unauthenticated", internal.NewUnauthenticatedError("no token", internal.ErrCodeMissingToken), http.StatusUnauthorized),
		Entry("inactive account", internal.NewAccountInactiveError("pending", internal.ErrCodeAccountPending), http.StatusForbidden),
		Entry("forbidden", internal.NewForbiddenError("denied", internal.ErrCodePermissionDenied), http.StatusForbidden),
		Entry("conflict", internal.NewConflictError("stale", internal.ErrCodeVersionConflict), http.StatusConflict),
		Entry("insufficient stock", internal.NewInsufficientStockError("not enough"), http.StatusConflict),
	)
})
