package httpapi

import "net/http"

func (h *Handler) ListCertificates(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListCertificates")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	certs, err := h.svc.Certificates.List(ctx, principal.PlayerID)
	if err != nil {
		h.fail(ctx, w, "list certificates", err)
		return
	}

	out := make([]certificateDTO, 0, len(certs))
	for _, c := range certs {
		out = append(out, certificateToDTO(c))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) VerifyCertificate(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.VerifyCertificate")
	defer span.End()

	certificateID, err := pathID(r, "certificateID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	v, err := h.svc.Certificates.Verify(ctx, certificateID)
	if err != nil {
		h.fail(ctx, w, "verify certificate", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, verificationDTO{
		Certificate:    certificateToDTO(v.Certificate),
		ComputedHash:   v.ComputedHash,
		HashMatches:    v.HashMatches,
		InMerkleTree:   v.InMerkleTree,
		Proof:          v.Proof,
		Timestamped:    v.Timestamped,
		BatchConfirmed: v.BatchConfirmed,
	})
}

func (h *Handler) RunCertificateBatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunCertificateBatch")
	defer span.End()

	res, err := h.svc.Certificates.RunBatch(ctx)
	if err != nil {
		h.fail(ctx, w, "run certificate batch", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, batchToDTO(res))
}
