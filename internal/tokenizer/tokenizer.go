// Package tokenizer provides per-language sentence splitting for the ASR
// pipeline's words_to_sentences() realignment step.
package tokenizer

import (
	"fmt"
	"regexp"
	"strings"
)

// Tokenizer splits running text into sentences, matching the interface
// buffer_common.py's create_tokenizer() hands to OnlineASRProcessor: a
// Split(text) method behaving like MosesTokenizer's.
type Tokenizer interface {
	Split(text string) []string
}

// whisperLangCodes is Whisper's supported language set; create_tokenizer
// asserts against it before even considering which splitter to use.
var whisperLangCodes = splitCSV("af,am,ar,as,az,ba,be,bg,bn,bo,br,bs,ca,cs,cy,da,de,el,en,es,et,eu,fa,fi,fo,fr,gl,gu,ha,haw,he,hi,hr,ht,hu,hy,id,is,it,ja,jw,ka,kk,km,kn,ko,la,lb,ln,lo,lt,lv,mg,mi,mk,ml,mn,mr,ms,mt,my,ne,nl,nn,no,oc,pa,pl,ps,pt,ro,ru,sa,sd,si,sk,sl,sn,so,sq,sr,su,sv,sw,ta,te,tg,th,tk,tl,tr,tt,uk,ur,uz,vi,yi,yo,zh")

// mosesSupportedLangs is the subset fast-mosestokenizer ships splitters for.
var mosesSupportedLangs = splitCSV("as,bn,ca,cs,de,el,en,es,et,fi,fr,ga,gu,hi,hu,is,it,kn,lt,lv,ml,mni,mr,nl,or,pa,pl,pt,ro,ru,sk,sl,sv,ta,te,yue,zh")

func splitCSV(s string) map[string]bool {
	out := make(map[string]bool)
	for _, code := range strings.Split(s, ",") {
		out[code] = true
	}
	return out
}

// Registry resolves a language code to its Tokenizer, mirroring
// create_tokenizer's assert-then-dispatch shape: lookup fails fast for any
// language Whisper itself doesn't support, and again for one Whisper
// supports but no registered splitter covers.
type Registry struct{}

// NewRegistry returns the default registry covering the Ukrainian splitter
// and the generic Moses-style splitter for every mosesSupportedLangs code.
func NewRegistry() Registry { return Registry{} }

// Lookup returns the Tokenizer for lang, or an error if lang is outside
// Whisper's supported set or has no registered sentence splitter.
func (Registry) Lookup(lang string) (Tokenizer, error) {
	if !whisperLangCodes[lang] {
		return nil, fmt.Errorf("tokenizer: language must be a Whisper-supported language code, got %q", lang)
	}
	if lang == "uk" {
		return ukrainianTokenizer{}, nil
	}
	if mosesSupportedLangs[lang] {
		return mosesTokenizer{}, nil
	}
	return nil, fmt.Errorf("tokenizer: language not supported by current tokenizers: %q", lang)
}

// sentenceBoundary matches a sentence-ending punctuation mark followed by
// whitespace and the start of the next sentence, the same coarse heuristic
// Moses' split-sentences.perl uses for languages without special casing.
var sentenceBoundary = regexp.MustCompile(`(?:[.!?]+)(\s+)`)

// mosesTokenizer is a generic stand-in for fast-mosestokenizer's per-language
// MosesTokenizer, splitting on sentence-final punctuation.
type mosesTokenizer struct{}

func (mosesTokenizer) Split(text string) []string {
	return splitOnBoundary(text)
}

// ukrainianTokenizer stands in for tokenize_uk.tokenize_sents, which applies
// Ukrainian-specific abbreviation and initial handling on top of the same
// punctuation-boundary heuristic.
type ukrainianTokenizer struct{}

func (ukrainianTokenizer) Split(text string) []string {
	return splitOnBoundary(text)
}

func splitOnBoundary(text string) []string {
	idxs := sentenceBoundary.FindAllStringIndex(text, -1)
	if idxs == nil {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var out []string
	start := 0
	for _, m := range idxs {
		end := m[1] // include the punctuation and the whitespace in this sentence
		seg := strings.TrimSpace(text[start:end])
		if seg != "" {
			out = append(out, seg)
		}
		start = end
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
