package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"projecthub/internal/media/sniffer"
	"projecthub/internal/models"
	"projecthub/internal/service"
)

type contractResponse struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	ContractURL string    `json:"contract_url"`
	PaymentURL  string    `json:"payment_url"`
	CreatedAt   time.Time `json:"created_at"`
}

func newContractResponse(ct models.Contract) contractResponse {
	return contractResponse{
		ID:          ct.ID,
		ProjectID:   ct.ProjectID,
		ContractURL: ct.ContractURL,
		PaymentURL:  ct.PaymentURL,
		CreatedAt:   ct.CreatedAt,
	}
}

func (h HandlerSet) UploadDocuments(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		if c.Request.ContentLength > h.maxUploadBytes {
			h.tooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	contract, closeContract, err := formFile(c, service.DocumentKindContract)
	if err != nil {
		h.formFileFailed(c, err)
		return
	}
	defer closeContract()

	payment, closePayment, err := formFile(c, service.DocumentKindPayment)
	if err != nil {
		h.formFileFailed(c, err)
		return
	}
	defer closePayment()

	result, err := h.documents.Upload(c.Request.Context(), caller, service.UploadDocumentsInput{
		ProjectID: c.Param("id"),
		Contract:  contract,
		Payment:   payment,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "documents uploaded",
		"documents": newContractResponse(result),
	})
}

func (h HandlerSet) formFileFailed(c *gin.Context, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		h.tooLarge(c)
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "contract and payment files are required"})
}

func (h HandlerSet) tooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error":   "payload_too_large",
		"message": fmt.Sprintf("uploads are limited to %d bytes", h.maxUploadBytes),
	})
}

func formFile(c *gin.Context, field string) (*service.UploadFile, func(), error) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	return uploadFile(file, header), func() { _ = file.Close() }, nil
}

func uploadFile(file multipart.File, header *multipart.FileHeader) *service.UploadFile {
	return &service.UploadFile{
		Filename:     header.Filename,
		DeclaredType: sniffer.MimeTypeFromHTTP(http.Header(header.Header)),
		Body:         file,
	}
}

func (h HandlerSet) ListDocuments(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}

	contracts, err := h.documents.List(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]contractResponse, 0, len(contracts))
	for _, ct := range contracts {
		items = append(items, newContractResponse(ct))
	}
	c.JSON(http.StatusOK, gin.H{"documents": items})
}
