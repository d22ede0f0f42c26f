/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vcproof

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"

	"github.com/hyperledger/aries-exchange-go/pkg/doc/vc"
)

var language = gval.Full(jsonpath.PlaceholderExtension())

// attributeValue reads a subject attribute through its JSON path.
func attributeValue(c *vc.Credential, name string) (interface{}, bool, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, false, err
	}

	var doc interface{}
	if err = json.Unmarshal(raw, &doc); err != nil {
		return nil, false, err
	}

	path, err := language.NewEvaluable(fmt.Sprintf("$.credentialSubject[%q]", name))
	if err != nil {
		return nil, false, fmt.Errorf("build json path for %q: %w", name, err)
	}

	v, err := path(context.Background(), doc)
	if err != nil {
		// an unknown key is reported as an error by jsonpath
		return nil, false, nil // nolint: nilerr
	}

	return v, true, nil
}

func attributeString(c *vc.Credential, name string) (string, bool, error) {
	v, ok, err := attributeValue(c, name)
	if err != nil || !ok {
		return "", ok, err
	}

	if s, isString := v.(string); isString {
		return s, true, nil
	}

	return fmt.Sprint(v), true, nil
}

// satisfies reports whether the credential matches any of the restrictions, or there are none.
func satisfies(c *vc.Credential, restrictions []Restriction) bool {
	if len(restrictions) == 0 {
		return true
	}

	for _, r := range restrictions {
		if r.CredDefID != "" && r.CredDefID != c.CredentialDefinitionID {
			continue
		}

		if r.IssuerDID != "" && r.IssuerDID != c.Issuer {
			continue
		}

		return true
	}

	return false
}

// evaluatePredicate compares the numeric attribute with the predicate value.
func evaluatePredicate(c *vc.Credential, p *PredicateGroup) (bool, error) {
	raw, ok, err := attributeString(c, p.Name)
	if err != nil || !ok {
		return false, err
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false, fmt.Errorf("attribute %q is not numeric", p.Name)
	}

	res, err := gval.Evaluate("value "+p.PType+" threshold", map[string]interface{}{
		"value":     value,
		"threshold": float64(p.PValue),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate predicate on %q: %w", p.Name, err)
	}

	b, ok := res.(bool)

	return ok && b, nil
}

func answersAttribute(c *vc.Credential, a *AttributeGroup) (bool, error) {
	if !satisfies(c, a.Restrictions) {
		return false, nil
	}

	_, ok, err := attributeValue(c, a.Name)

	return ok, err
}

func answersPredicate(c *vc.Credential, p *PredicateGroup) (bool, error) {
	if !satisfies(c, p.Restrictions) {
		return false, nil
	}

	return evaluatePredicate(c, p)
}

// SelectCredentials picks, for every group of the request, the first held credential answering it
// in credential id order.
func SelectCredentials(req *ProofRequest, held []*vc.Credential) (*SelectedCredentials, error) {
	sorted := append([]*vc.Credential(nil), held...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	selected := &SelectedCredentials{
		RequestedAttributes: map[string]string{},
		RequestedPredicates: map[string]string{},
	}

	for group, a := range req.RequestedAttributes {
		id := first(sorted, func(c *vc.Credential) (bool, error) {
			return answersAttribute(c, a)
		})
		if id == "" {
			return nil, fmt.Errorf("no credential answers attribute group %q", group)
		}

		selected.RequestedAttributes[group] = id
	}

	for group, p := range req.RequestedPredicates {
		id := first(sorted, func(c *vc.Credential) (bool, error) {
			return answersPredicate(c, p)
		})
		if id == "" {
			return nil, fmt.Errorf("no credential answers predicate group %q", group)
		}

		selected.RequestedPredicates[group] = id
	}

	return selected, nil
}

func first(credentials []*vc.Credential, match func(*vc.Credential) (bool, error)) string {
	for _, c := range credentials {
		ok, err := match(c)
		if err != nil {
			logger.Debugf("credential %s skipped: %v", c.ID, err)

			continue
		}

		if ok {
			return c.ID
		}
	}

	return ""
}
