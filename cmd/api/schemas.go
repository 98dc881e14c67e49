package main

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const amountType = `{"type": ["number", "string"], "pattern": "^-?[0-9]+(\\.[0-9]+)?$"}`

var (
	registerClientSchema = mustSchema(`{
		"type": "object",
		"required": ["first_name", "last_name", "national_id", "phone"],
		"properties": {
			"first_name": {"type": "string", "minLength": 1, "maxLength": 100},
			"last_name": {"type": "string", "minLength": 1, "maxLength": 100},
			"national_id": {"type": "string", "minLength": 1, "maxLength": 30},
			"phone": {"type": "string", "minLength": 1, "maxLength": 30},
			"email": {"type": "string", "maxLength": 254},
			"address": {"type": "string", "maxLength": 300}
		},
		"additionalProperties": false
	}`)

	updateClientSchema = mustSchema(`{
		"type": "object",
		"minProperties": 1,
		"properties": {
			"first_name": {"type": "string", "minLength": 1, "maxLength": 100},
			"last_name": {"type": "string", "minLength": 1, "maxLength": 100},
			"national_id": {"type": "string", "minLength": 1, "maxLength": 30},
			"phone": {"type": "string", "minLength": 1, "maxLength": 30},
			"email": {"type": "string", "maxLength": 254},
			"address": {"type": "string", "maxLength": 300},
			"status": {"type": "string", "enum": ["pending", "paid", "delinquent", "pendiente", "pagado", "mora"]}
		},
		"additionalProperties": false
	}`)

	createLoanSchema = mustSchema(`{
		"type": "object",
		"required": ["client_id", "principal", "monthly_rate", "installment_count"],
		"properties": {
			"client_id": {"type": "string", "format": "uuid"},
			"principal": ` + amountType + `,
			"monthly_rate": ` + amountType + `,
			"installment_count": {"type": "integer", "minimum": 1, "maximum": 600},
			"notes": {"type": "string", "maxLength": 1000}
		},
		"additionalProperties": false
	}`)

	applyPaymentSchema = mustSchema(`{
		"type": "object",
		"required": ["loan_id", "installment_number", "amount_paid"],
		"properties": {
			"loan_id": {"type": "string", "format": "uuid"},
			"installment_number": {"type": "integer", "minimum": 1},
			"amount_paid": ` + amountType + `,
			"payment_date": {"type": "string", "minLength": 1},
			"method": {"type": "string", "enum": ["cash", "transfer", "card", "check"]},
			"reference": {"type": "string", "maxLength": 100},
			"notes": {"type": "string", "maxLength": 1000}
		},
		"additionalProperties": false
	}`)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return schema
}
