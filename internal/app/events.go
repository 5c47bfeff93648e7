package app

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

const defaultAccountCategory = "CHECKING"

func createdMail(p *domain.Person, role string) domain.SendMailEvent {
	return domain.SendMailEvent{
		Email: p.Email,
		Placeholders: map[string]string{
			"id":            p.ID.String(),
			"firstName":     p.FirstName,
			"lastName":      p.LastName,
			"role":          role,
			"accountId":     "n/a",
			"cartItemCount": "n/a",
		},
	}
}

func deletedMail(p *domain.Person, now time.Time) domain.SendMailEvent {
	return domain.SendMailEvent{
		Email: p.Email,
		Placeholders: map[string]string{
			"id":            p.ID.String(),
			"firstName":     p.FirstName,
			"lastName":      p.LastName,
			"deletionDate":  now.Format(domain.DateLayout),
			"cartItemCount": "n/a",
		},
	}
}

type outboundEvent struct {
	topic   string
	payload interface{}
}

func customerCreatedEvents(p *domain.Person, role string) []outboundEvent {
	return []outboundEvent{
		{domain.TopicNotificationCustomerCreated, createdMail(p, role)},
		{domain.TopicAccountCustomerCreated, domain.CreateAccountDTO{
			Category: defaultAccountCategory,
			UserID:   p.ID,
			Username: p.Username,
		}},
		{domain.TopicShoppingCartCustomerCreated, domain.ShoppingCartDTO{
			CustomerID:       p.ID,
			CustomerUsername: p.Username,
		}},
	}
}

func customerDeletedEvents(p *domain.Person, now time.Time) []outboundEvent {
	return []outboundEvent{
		{domain.TopicShoppingCartCustomerDeleted, domain.ShoppingCartDTO{CustomerID: p.ID}},
		{domain.TopicAccountCustomerDeleted, domain.DeleteAccountDTO{ID: p.ID, Version: p.Version, Username: p.Username}},
		{domain.TopicNotificationCustomerDeleted, deletedMail(p, now)},
	}
}

// publishAll sends events in order and stops at the first failed publish.
func (s *WriteService) publishAll(ctx context.Context, events []outboundEvent) error {
	for _, ev := range events {
		if err := s.publisher.Publish(ctx, ev.topic, ev.payload); err != nil {
			s.log.WithFields(logrus.Fields{"topic": ev.topic, "err": err}).Error("failed to publish event")
			s.metrics.publishFailures.WithLabelValues(ev.topic).Inc()
			return pkgerrors.Wrapf(err, "publish %s", ev.topic)
		}
	}
	return nil
}
