package server

import (
	"io"
	"net/http"

	"github.com/mmynk/billparty/internal/models"
	"github.com/mmynk/billparty/internal/receipt"
)

// maxReceiptSize bounds uploaded receipt images (bytes).
const maxReceiptSize = 10 << 20

type receiptResponse struct {
	BillImage *models.BillImage `json:"billImage"`
	Receipt   *receipt.Receipt  `json:"receipt"`
}

// handleReceipts accepts a multipart receipt upload: the image is stored, a
// bill-image record is written, and the OCR extraction is returned alongside
// the record.
func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	if err := r.ParseMultipartForm(maxReceiptSize); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed multipart body")
		return
	}

	partyID := r.FormValue("partyId")
	if missing := requireFields([2]string{"partyId", partyID}); len(missing) > 0 {
		s.missingFields(w, missing)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.missingFields(w, []string{"file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxReceiptSize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	image, extracted, err := s.receipts.Upload(r.Context(), partyID, header.Filename, data)
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, receiptResponse{BillImage: image, Receipt: extracted})
}
