package ingest

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"fieldload/domain/fieldvalue"
	"fieldload/internal/diaglog"
	"fieldload/internal/errors"
	"fieldload/ports"

	"github.com/tidwall/gjson"
)

// Classifier turns a received response into an UpsertResult
type Classifier interface {
	Classify(resp *ports.Response) fieldvalue.UpsertResult
}

// StatusClassifier is the default Classifier. Non-2xx is a RequestError; a
// 2xx that declares JSON but does not parse is a ParseError; anything else
// was sent. A truncated 2xx body is not validated.
type StatusClassifier struct{}

func (StatusClassifier) Classify(resp *ports.Response) fieldvalue.UpsertResult {
	result := fieldvalue.UpsertResult{
		StatusCode: resp.StatusCode,
		Body:       string(resp.Body),
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Outcome = fieldvalue.OutcomeRequestError
		result.Err = errors.RequestError(resp.StatusCode, result.Body, nil)
		return result
	}
	if !resp.Truncated && isJSON(resp.ContentType()) && !gjson.ValidBytes(resp.Body) {
		result.Outcome = fieldvalue.OutcomeParseError
		result.Err = errors.ParseError(result.Body)
		return result
	}
	result.Outcome = fieldvalue.OutcomeSent
	return result
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

// Upserter sends admitted keys to the catalog, one call per key
type Upserter struct {
	requester  ports.Requester
	classifier Classifier
	logger     diaglog.Logger
}

// NewUpserter creates an Upserter. A nil classifier means StatusClassifier.
func NewUpserter(requester ports.Requester, classifier Classifier, logger diaglog.Logger) *Upserter {
	if classifier == nil {
		classifier = StatusClassifier{}
	}
	if logger == nil {
		logger = diaglog.Nop
	}
	return &Upserter{requester: requester, classifier: classifier, logger: logger}
}

// Submit POSTs to key with no body. It never retries.
func (u *Upserter) Submit(ctx context.Context, key fieldvalue.RequestKey) fieldvalue.UpsertResult {
	u.logger.Debugf("sending %s", key)

	start := time.Now()
	resp, err := u.requester.Request(ctx, key.String(), http.MethodPost, "", nil)
	latency := time.Since(start)

	if err != nil {
		reqErr := errors.RequestError(0, "", err)
		log.Printf("[Upserter] request error: %v", reqErr)
		u.logger.Errorf("request error for %s: %v. Response: N/A", key, reqErr)
		return fieldvalue.UpsertResult{
			Key:     key,
			Outcome: fieldvalue.OutcomeRequestError,
			Err:     reqErr,
			Latency: latency,
		}
	}

	result := u.classifier.Classify(resp)
	result.Key = key
	result.Latency = latency
	if resp.Truncated {
		u.logger.Warnf("response for %s truncated at %d bytes", key, len(resp.Body))
	}

	switch result.Outcome {
	case fieldvalue.OutcomeRequestError:
		log.Printf("[Upserter] request error: status %d for %s", result.StatusCode, key)
		u.logger.Errorf("request error for %s: %v", key, result.Err)
	case fieldvalue.OutcomeParseError:
		log.Printf("[Upserter] could not decode JSON response for %s, see diagnostic log", key)
		u.logger.Errorf("JSON decode error for %s: %v", key, result.Err)
	default:
		u.logger.Debugf("%s: status %d for %s: %s", result.Outcome, result.StatusCode, key, result.Body)
	}
	return result
}
