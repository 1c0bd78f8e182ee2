package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const jobColumns = "id, job_id, correlation_id, provider_job_id, reference_ciphertext, output_formats, quality, priority, category, status, progress, progress_message, stage, retry_count, sequence, lease_owner, lease_expires_at, last_polled_at, next_poll_at, created_at, updated_at, started_at, completed_at, manifest_json, metadata_json, error_kind, error_message"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		jobID           string
		correlationID   string
		providerJobID   sql.NullString
		referenceCipher string
		outputFormats   string
		quality         string
		priority        string
		category        string
		statusStr       string
		progress        float64
		progressMessage sql.NullString
		stage           sql.NullString
		retryCount      int
		sequence        int64
		leaseOwner      sql.NullString
		leaseExpiresRaw sql.NullString
		lastPolledRaw   sql.NullString
		nextPollRaw     sql.NullString
		createdRaw      string
		updatedRaw      string
		startedRaw      sql.NullString
		completedRaw    sql.NullString
		manifestJSON    sql.NullString
		metadataJSON    sql.NullString
		errorKind       sql.NullString
		errorMessage    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&jobID,
		&correlationID,
		&providerJobID,
		&referenceCipher,
		&outputFormats,
		&quality,
		&priority,
		&category,
		&statusStr,
		&progress,
		&progressMessage,
		&stage,
		&retryCount,
		&sequence,
		&leaseOwner,
		&leaseExpiresRaw,
		&lastPolledRaw,
		&nextPollRaw,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
		&manifestJSON,
		&metadataJSON,
		&errorKind,
		&errorMessage,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                  id,
		JobID:               jobID,
		CorrelationID:       correlationID,
		ProviderJobID:       providerJobID.String,
		ReferenceCiphertext: referenceCipher,
		Quality:             QualityTier(quality),
		Priority:            Priority(priority),
		Category:            category,
		Status:              Status(statusStr),
		Progress:            progress,
		ProgressMessage:     progressMessage.String,
		Stage:               stage.String,
		RetryCount:          retryCount,
		Sequence:            sequence,
		LeaseOwner:          leaseOwner.String,
		ManifestJSON:        manifestJSON.String,
		MetadataJSON:        metadataJSON.String,
		ErrorKind:           errorKind.String,
		ErrorMessage:        errorMessage.String,
	}

	if outputFormats != "" {
		if err := json.Unmarshal([]byte(outputFormats), &job.OutputFormats); err != nil {
			return nil, err
		}
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	job.LeaseExpiresAt = parseNullableTime(leaseExpiresRaw)
	job.LastPolledAt = parseNullableTime(lastPolledRaw)
	job.NextPollAt = parseNullableTime(nextPollRaw)
	job.StartedAt = parseNullableTime(startedRaw)
	job.CompletedAt = parseNullableTime(completedRaw)
	return job, nil
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
