// config_validation.go: Options validation for Cascade
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	goerrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/agilira/go-errors"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func optionsValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the options against their declared constraints.
// Defaults are not applied; call WithDefaults first for zero-valued options.
func (o Options) Validate() error {
	if err := optionsValidator().Struct(o); err != nil {
		var fieldErrs validator.ValidationErrors
		if goerrors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
			}
			return errors.New(ErrCodeInvalidOptions, strings.Join(msgs, "; "))
		}
		return errors.Wrap(err, ErrCodeInvalidOptions, "options validation failed")
	}
	if o.Audit.Enabled {
		if err := o.Audit.validate(); err != nil {
			return err
		}
	}
	return nil
}
