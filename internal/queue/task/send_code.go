package task

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	SendCodeTaskName  = "sendCodeTask"
	SendCodeQueueName = "sendCodeQueue"
)

type SendCode struct {
	Email            string `json:"email"`
	EventName        string `json:"event_name"`
	VerificationCode string `json:"verification_code"`
}

func NewSendCodeTask(email string, eventName string, verificationCode string) (*asynq.Task, error) {
	var data SendCode
	data.Email = email
	data.EventName = eventName
	data.VerificationCode = verificationCode

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("json data marshal failed: %w", err)
	}

	return asynq.NewTask(
		SendCodeTaskName,
		payload,
		asynq.MaxRetry(5),
		asynq.Queue(SendCodeQueueName),
	), nil
}
