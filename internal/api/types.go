package api

import (
	"encoding/json"
	"errors"
)

// stringOrSlice unmarshals EasyNMT's dynamically typed "text" field, which
// may arrive as either a single JSON string or a list of strings.
type stringOrSlice struct {
	Values   []string
	WasScalar bool
}

func (s *stringOrSlice) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		s.Values = []string{single}
		s.WasScalar = true
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		s.Values = list
		s.WasScalar = false
		return nil
	}

	return errors.New("text must be a string or a list of strings")
}

// translateRequestBody mirrors the POST /translate JSON body.
type translateRequestBody struct {
	Text                     stringOrSlice `json:"text"`
	TargetLang               string        `json:"target_lang"`
	SourceLang               string        `json:"source_lang"`
	BeamSize                 int           `json:"beam_size"`
	PerformSentenceSplitting *bool         `json:"perform_sentence_splitting"`
	ModelFamily              string        `json:"model_family"`
}

// itemMetadataView is one item's served-by metadata in the response.
type itemMetadataView struct {
	ModelName       string   `json:"model_name,omitempty"`
	Family          string   `json:"family,omitempty"`
	LanguagesUsed   []string `json:"languages_used,omitempty"`
	ChunksProcessed int      `json:"chunks_processed"`
	ChunkSize       int      `json:"chunk_size,omitempty"`
	AutoChunked     bool     `json:"auto_chunked"`
	PivotPath       []string `json:"pivot_path,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// translateResponseBody mirrors the full (non-compat) POST /translate
// response.
type translateResponseBody struct {
	TargetLang      string              `json:"target_lang"`
	SourceLang      string              `json:"source_lang,omitempty"`
	DetectedLangs   []string            `json:"detected_langs,omitempty"`
	Translated      []string            `json:"translated"`
	TranslationTime float64             `json:"translation_time"`
	PivotPath       []string            `json:"pivot_path,omitempty"`
	Metadata        []itemMetadataView  `json:"metadata,omitempty"`
}

// translateGetResponseBody mirrors the GET /translate (non-compat)
// response: a flat translations list plus the pivot path when any item
// was pivoted.
type translateGetResponseBody struct {
	Translations []string `json:"translations"`
	PivotPath    []string `json:"pivot_path,omitempty"`
}

// compatTranslateResponseBody mirrors the strict EasyNMT-compat namespace,
// which drops every gateway-specific extension field.
type compatTranslateResponseBody struct {
	TargetLang      string   `json:"target_lang,omitempty"`
	SourceLang      string   `json:"source_lang,omitempty"`
	DetectedLangs   []string `json:"detected_langs,omitempty"`
	Translated      []string `json:"translated,omitempty"`
	Translations    []string `json:"translations,omitempty"`
	TranslationTime float64  `json:"translation_time,omitempty"`
}

type languageDetectionRequestBody struct {
	Text stringOrSlice `json:"text"`
}

type languageDetectionResponseBody struct {
	DetectedLangs []string `json:"detected_langs"`
}

type errorResponseBody struct {
	Error         string  `json:"error"`
	RetryAfterSec float64 `json:"retry_after_sec,omitempty"`
}
