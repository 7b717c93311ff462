package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	advisory "github.com/goliatone/go-advisory"
	"github.com/goliatone/go-advisory/components/authflow"
	"github.com/goliatone/go-advisory/components/cropadvisor"
	"github.com/goliatone/go-advisory/internal/prompt"
	"github.com/goliatone/go-advisory/pkg/form"
	"github.com/goliatone/go-advisory/pkg/ranking"
	"github.com/goliatone/go-advisory/pkg/submit"
	"github.com/goliatone/go-advisory/pkg/workflow"
)

const gaugeWidth = 24

var flowNames = []string{"fertilizer", "crop", "irrigation", "login", "weather", "chat"}

func fixedLocator(lat, lon float64) cropadvisor.Locator {
	return cropadvisor.LocatorFunc(func(context.Context) (cropadvisor.Coordinates, error) {
		return cropadvisor.Coordinates{Latitude: lat, Longitude: lon}, nil
	})
}

type runner struct {
	dashboard *advisory.Dashboard
	prompts   prompt.Driver
	lat, lon  float64
}

func (r *runner) pickFlow(ctx context.Context) (string, error) {
	idx, err := r.prompts.Select(ctx, prompt.SelectConfig{
		Message: "What do you need advice on?",
		Options: flowNames,
	})
	if err != nil {
		return "", err
	}
	return flowNames[idx], nil
}

func (r *runner) run(ctx context.Context, name string) error {
	switch name {
	case "fertilizer":
		return r.runFertilizer(ctx)
	case "crop":
		return r.runCrop(ctx)
	case "irrigation":
		return r.runIrrigation(ctx)
	case "login":
		return r.runLogin(ctx)
	case "weather":
		return r.runWeather(ctx)
	case "chat":
		return r.runChat(ctx)
	default:
		return fmt.Errorf("unknown flow %q", name)
	}
}

func (r *runner) runFertilizer(ctx context.Context) error {
	flow := r.dashboard.Fertilizer

	lists, err := flow.FetchOptions(ctx)
	if err != nil {
		return err
	}

	districtIdx, err := r.prompts.Select(ctx, prompt.SelectConfig{
		Message: "District",
		Options: lists.Districts,
	})
	if err != nil {
		return err
	}
	flow.SetDistrict(ctx, lists.Districts[districtIdx])
	flow.Flush() // wait for the district auto-fill before showing values

	cropIdx, err := r.prompts.Select(ctx, prompt.SelectConfig{
		Message: "Crop",
		Options: lists.Crops,
	})
	if err != nil {
		return err
	}
	flow.Set("crop", lists.Crops[cropIdx])

	if err := r.editFields(ctx, flow.Model(), flow.State(), map[string]bool{"district": true, "crop": true}); err != nil {
		return err
	}

	if err := flow.Submit(ctx); err != nil {
		return describeSubmitErr(err)
	}
	flow.Flush()
	return r.printResult(ctx, "Recommended fertilizers", flow.Result())
}

func (r *runner) runCrop(ctx context.Context) error {
	flow := r.dashboard.Crop

	useLocation, err := r.prompts.Confirm(ctx, prompt.ConfirmConfig{
		Message: "Refine defaults from your location?",
		Default: true,
	})
	if err != nil {
		return err
	}
	if useLocation {
		if _, err := flow.UseLocation(ctx); err != nil {
			if infoErr := r.prompts.Info(ctx, "Location unavailable, keeping regional defaults."); infoErr != nil {
				return infoErr
			}
		}
		flow.Flush()
	}

	if err := r.editFields(ctx, flow.Model(), flow.State(), nil); err != nil {
		return err
	}

	if err := flow.Submit(ctx); err != nil {
		return describeSubmitErr(err)
	}
	flow.Flush()
	return r.printResult(ctx, "Recommended crops", flow.Result())
}

func (r *runner) runIrrigation(ctx context.Context) error {
	planner := r.dashboard.Irrigation

	if err := r.editFields(ctx, planner.Model(), planner.State(), nil); err != nil {
		return err
	}

	plan, err := planner.Plan(ctx)
	if err != nil {
		return err
	}
	lines := []string{
		"Frequency:  " + plan.Frequency,
		"Water:      " + plan.WaterAmount,
	}
	if plan.Notes != "" {
		lines = append(lines, "Notes:      "+plan.Notes)
	}
	return r.prompts.Info(ctx, strings.Join(lines, "\n"))
}

func (r *runner) runLogin(ctx context.Context) error {
	flow := r.dashboard.Login

	for flow.Status() == workflow.StatusRunning {
		switch flow.Stage() {
		case authflow.StagePhone:
			phone, err := r.prompts.Input(ctx, prompt.InputConfig{Message: "Phone number"})
			if err != nil {
				return err
			}
			flow.Set("phone", phone)
		case authflow.StageVerify:
			otp, err := r.prompts.Input(ctx, prompt.InputConfig{Message: "One-time password"})
			if err != nil {
				return err
			}
			flow.Set("otp", otp)
		case authflow.StageProfile:
			name, err := r.prompts.Input(ctx, prompt.InputConfig{Message: "Full name"})
			if err != nil {
				return err
			}
			district, err := r.prompts.Input(ctx, prompt.InputConfig{Message: "District"})
			if err != nil {
				return err
			}
			flow.Set("fullName", name)
			flow.Set("district", district)
		}

		if err := flow.Submit(ctx); err != nil {
			return err
		}
		if message := flow.Rejection(); message != "" && flow.Status() == workflow.StatusRunning {
			if err := r.prompts.Info(ctx, message); err != nil {
				return err
			}
		}
	}

	if user, ok := flow.User(); ok {
		return r.prompts.Info(ctx, "Signed in as "+user.FullName+" ("+user.Phone+")")
	}
	return errors.New("login did not complete")
}

func (r *runner) runWeather(ctx context.Context) error {
	feed := r.dashboard.Weather

	forecast, err := feed.Forecast(ctx, r.lat, r.lon)
	if err != nil {
		return err
	}
	lines := []string{fmt.Sprintf("Now: %.1f °C, %s", forecast.Current.Temperature, forecast.Current.Condition)}
	for _, day := range forecast.Daily {
		lines = append(lines, fmt.Sprintf("%s  %-14s %.0f–%.0f °C", day.Date, day.Condition, day.MinTemp, day.MaxTemp))
	}
	if forecast.Advice != "" {
		lines = append(lines, "", forecast.Advice)
	}

	alerts, err := feed.Alerts(ctx, r.lat, r.lon)
	if err == nil {
		for _, alert := range alerts {
			lines = append(lines, fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(alert.Severity)), alert.Title, alert.Message))
		}
	}
	return r.prompts.Info(ctx, strings.Join(lines, "\n"))
}

func (r *runner) runChat(ctx context.Context) error {
	bot := r.dashboard.Chat

	for {
		message, err := r.prompts.Input(ctx, prompt.InputConfig{Message: "You (empty to quit)"})
		if err != nil {
			return err
		}
		if strings.TrimSpace(message) == "" {
			return nil
		}
		reply, err := bot.Send(ctx, message)
		if err != nil {
			if infoErr := r.prompts.Info(ctx, "Advisor unreachable, try again."); infoErr != nil {
				return infoErr
			}
			continue
		}
		if err := r.prompts.Info(ctx, "Advisor: "+reply); err != nil {
			return err
		}
	}
}

// editFields walks the model's fields in display order and lets the user
// accept or change the current value. Fields in skip were already captured.
func (r *runner) editFields(ctx context.Context, model form.Model, state *form.State, skip map[string]bool) error {
	for _, field := range model.Fields {
		if skip[field.Name] {
			continue
		}

		label := field.Label
		if label == "" {
			label = field.Name
		}
		current := state.GetString(field.Name)

		if len(field.Options) > 0 {
			defaultIdx := 0
			for i, option := range field.Options {
				if option == current {
					defaultIdx = i
					break
				}
			}
			idx, err := r.prompts.Select(ctx, prompt.SelectConfig{
				Message:      label,
				Options:      field.Options,
				DefaultIndex: defaultIdx,
			})
			if err != nil {
				return err
			}
			state.Set(field.Name, field.Options[idx])
			continue
		}

		value, err := r.prompts.Input(ctx, prompt.InputConfig{
			Message:   label,
			Default:   current,
			Help:      field.Description,
			Validator: fieldValidator(field),
		})
		if err != nil {
			return err
		}
		state.Set(field.Name, strings.TrimSpace(value))
	}
	return nil
}

func fieldValidator(field form.Field) func(string) error {
	if field.Type != form.FieldTypeNumber && field.Type != form.FieldTypeInteger {
		return nil
	}
	return func(value string) error {
		value = strings.TrimSpace(value)
		if value == "" {
			return nil
		}
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return errors.New("enter a number")
		}
		return nil
	}
}

func (r *runner) printResult(ctx context.Context, title string, result submit.Result) error {
	switch result.Status {
	case submit.StatusSuccess:
		lines := []string{title + ":"}
		for _, row := range result.List.Rows() {
			lines = append(lines, fmt.Sprintf("%2d. %-20s %s %5.1f%%",
				row.Rank, row.Label, ranking.Bar(row.Confidence, gaugeWidth), row.Confidence))
		}
		return r.prompts.Info(ctx, strings.Join(lines, "\n"))
	case submit.StatusFailure:
		return describeSubmitErr(result.Err)
	default:
		return fmt.Errorf("no result available (status %s)", result.Status)
	}
}

func describeSubmitErr(err error) error {
	var vErr *submit.ValidationError
	if errors.As(err, &vErr) {
		lines := []string{"Please fix the following:"}
		for field, messages := range vErr.Issues {
			lines = append(lines, "  "+field+": "+strings.Join(messages, "; "))
		}
		return errors.New(strings.Join(lines, "\n"))
	}
	var rejected *submit.ServerRejected
	if errors.As(err, &rejected) {
		lines := []string{rejected.Message}
		for field, messages := range rejected.Fields {
			lines = append(lines, "  "+field+": "+strings.Join(messages, "; "))
		}
		return errors.New(strings.Join(lines, "\n"))
	}
	return err
}
