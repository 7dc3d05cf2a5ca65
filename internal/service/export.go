package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nhle/certledger/internal/model"
	"github.com/nhle/certledger/internal/report"
	"github.com/nhle/certledger/internal/store"
)

// ExportEvidenceReport writes the PDF dossier of certNumber into the
// configured report directory, or dir when it is not empty.
func (l *Ledger) ExportEvidenceReport(ctx context.Context, certNumber, dir, actor string) (report.Result, error) {
	actor = actorOrSystem(actor)

	data, err := l.reportData(ctx, certNumber, actor)
	if err != nil {
		return report.Result{}, err
	}

	if dir == "" {
		cfg, err := l.config.Load()
		if err != nil {
			return report.Result{}, fmt.Errorf("loading settings: %w", err)
		}
		dir = cfg.Report.Dir
	}

	var buf bytes.Buffer
	if err := report.WriteCertificateReport(&buf, data); err != nil {
		return report.Result{}, err
	}
	sum := sha256.Sum256(buf.Bytes())

	res := report.Result{
		Path:   filepath.Join(dir, fmt.Sprintf("%s_evidence_%d.pdf", certNumber, data.GeneratedAt.Unix())),
		SHA256: hex.EncodeToString(sum[:]),
		Bytes:  buf.Len(),
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return report.Result{}, fmt.Errorf("creating report directory %s: %w", dir, err)
	}
	if err := os.WriteFile(res.Path, buf.Bytes(), 0o644); err != nil {
		err = fmt.Errorf("writing report %s: %w", res.Path, err)
		l.auditError(ctx, actor, model.ActionExportReport, model.EntityCert, certNumber, err)
		return report.Result{}, err
	}

	after, err := toJSON(res)
	if err != nil {
		return report.Result{}, err
	}
	err = l.store.AppendAudit(ctx, &model.AuditLogEntry{
		TS:         data.GeneratedAt,
		Actor:      actor,
		Action:     model.ActionExportReport,
		EntityType: model.EntityCert,
		EntityID:   certNumber,
		AfterJSON:  after,
		Result:     model.ResultOK,
		Message:    "evidence report exported",
	})
	if err != nil {
		return report.Result{}, fmt.Errorf("auditing report export: %w", err)
	}

	l.logger.Info("report exported",
		zap.String("cert", certNumber),
		zap.String("path", res.Path),
		zap.String("sha256", res.SHA256),
	)
	return res, nil
}

func (l *Ledger) reportData(ctx context.Context, certNumber, actor string) (report.Data, error) {
	cert, err := l.store.GetCertificate(ctx, certNumber)
	if err != nil {
		return report.Data{}, fmt.Errorf("loading certificate %s: %w", certNumber, err)
	}
	receiver, err := l.store.GetPerson(ctx, cert.ReceiverID)
	if err != nil {
		return report.Data{}, fmt.Errorf("loading receiver: %w", err)
	}
	giver, err := l.store.GetPerson(ctx, cert.GiverID)
	if err != nil {
		return report.Data{}, fmt.Errorf("loading giver: %w", err)
	}

	evidence, err := l.store.ListEvidence(ctx, store.EvidenceFilter{CertNumber: &certNumber})
	if err != nil {
		return report.Data{}, err
	}
	entity := model.EntityCert
	audit, err := l.store.ListAudit(ctx, store.AuditFilter{EntityType: &entity, EntityID: &certNumber})
	if err != nil {
		return report.Data{}, err
	}
	verified, err := l.VerifyLedgers(ctx)
	if err != nil {
		return report.Data{}, err
	}

	return report.Data{
		Certificate:   *cert,
		Receiver:      *receiver,
		Giver:         *giver,
		Evidence:      evidence,
		Audit:         audit,
		EvidenceChain: verified.Evidence,
		AuditChain:    verified.Audit,
		GeneratedAt:   l.now(),
		GeneratedBy:   actor,
	}, nil
}
