package util

import "errors"

var (
	// ErrNoExtractableContent means the converter produced no usable text or
	// section structure; nothing downstream can run for this paper.
	ErrNoExtractableContent = errors.New("no extractable text or sections in converter output")

	// ErrEmptyRetrieval means the index is missing or no chunk cleared the
	// minimum similarity threshold. Recoverable; callers degrade to a
	// "no relevant passage" response.
	ErrEmptyRetrieval = errors.New("no chunks above similarity threshold")

	// ErrReviewParse means the model output could not be parsed into the
	// required review fields even after the stricter-format retry.
	ErrReviewParse = errors.New("model output could not be parsed into review fields")

	// ErrScoreParse means no usable numeric score survived parsing, even
	// after the stricter-format retry. Finite out-of-range values are not a
	// failure; they are clamped into [1,10] and logged.
	ErrScoreParse = errors.New("model score output could not be parsed")

	// ErrAssessmentParse means the innovation response was missing dimensions
	// or unparsable after the stricter-format retry.
	ErrAssessmentParse = errors.New("model output could not be parsed into innovation dimensions")

	// ErrFeedbackPersist means the feedback log append failed. The in-memory
	// adjustment is still returned; export stays incomplete until resolved.
	ErrFeedbackPersist = errors.New("feedback record could not be persisted")
)
