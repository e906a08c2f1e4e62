package cron

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

var ErrInvalidExpression = errors.New("invalid cron expression")

// Expression is a parsed five-field cron expression. Only the minute and
// hour fields take part in next-run calculation; a nil field was not a
// plain number (wildcard, step, list or range).
type Expression struct {
	Raw    string
	Minute *int
	Hour   *int
}

type Parser struct {
	parser cron.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

func (p *Parser) Parse(expression string) (*Expression, error) {
	expression = strings.TrimSpace(expression)
	fields := strings.Fields(expression)
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: expected 5 fields, got %d", ErrInvalidExpression, len(fields))
	}
	if _, err := p.parser.Parse(expression); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	return &Expression{
		Raw:    expression,
		Minute: literal(fields[0]),
		Hour:   literal(fields[1]),
	}, nil
}

func (p *Parser) Validate(expression string) error {
	_, err := p.Parse(expression)
	return err
}

func literal(field string) *int {
	v, err := strconv.Atoi(field)
	if err != nil {
		return nil
	}
	return &v
}
