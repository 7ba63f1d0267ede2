// Package classify assigns a primary category and topic labels to article
// text. Classification is rule-based keyword matching against the taxonomy;
// when a trained model artifact loads, it may override the primary category
// but the rules remain a safety net for the label set.
package classify

import "log"

// Result holds a classification: one primary category and the full label
// set (always containing the primary), in taxonomy priority order.
type Result struct {
	Primary string
	Labels  []string
}

// Classifier assigns categories to text. Implementations must be
// deterministic for identical input.
type Classifier interface {
	Classify(text string) Result
}

// RuleBased classifies purely through taxonomy keyword rules.
type RuleBased struct {
	tax *Taxonomy
}

// NewRuleBased creates a rule-based classifier over the given taxonomy.
func NewRuleBased(tax *Taxonomy) *RuleBased {
	return &RuleBased{tax: tax}
}

// Classify matches text against every category's patterns. The primary is
// the first match in taxonomy priority order; all matches (plus implied
// categories) form the label set. No match yields "general".
func (c *RuleBased) Classify(text string) Result {
	labels := c.tax.ordered(c.tax.match(text))
	if len(labels) == 0 {
		return Result{Primary: GeneralCategory, Labels: []string{GeneralCategory}}
	}
	return Result{Primary: labels[0], Labels: labels}
}

// ModelAugmented wraps a rule-based classifier with a trained linear model.
// The model picks the primary category when it is confident; the label set
// is always the union of the model's pick and every rule match.
type ModelAugmented struct {
	rules *RuleBased
	model *Model
}

// Classify runs the rules, then lets the model override the primary.
func (c *ModelAugmented) Classify(text string) Result {
	r := c.rules.Classify(text)

	predicted, ok := c.model.Predict(text)
	if !ok || !c.rules.tax.Has(predicted) {
		return r
	}

	set := make(map[string]bool, len(r.Labels)+1)
	for _, l := range r.Labels {
		set[l] = true
	}
	// Drop the rule fallback when the model found something concrete.
	if len(r.Labels) == 1 && r.Labels[0] == GeneralCategory && predicted != GeneralCategory {
		delete(set, GeneralCategory)
	}
	set[predicted] = true

	return Result{Primary: predicted, Labels: c.rules.tax.ordered(set)}
}

// New selects the classification strategy at startup: ModelAugmented when
// the artifact at modelPath loads, RuleBased otherwise. A load failure is
// logged once and is not fatal.
func New(tax *Taxonomy, modelPath string) Classifier {
	rules := NewRuleBased(tax)
	if modelPath == "" {
		return rules
	}
	model, err := LoadModel(modelPath)
	if err != nil {
		log.Printf("classifier model unavailable (%v), using rules only", err)
		return rules
	}
	log.Printf("loaded classifier model from %s (%d classes)", modelPath, len(model.Classes))
	return &ModelAugmented{rules: rules, model: model}
}
