package controllers

import (
	"context"
	"sync"

	"depotbook/src/repositories"
	"depotbook/src/scheduler"
	"depotbook/src/services"
	"depotbook/src/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const mergeTask = "price-merge"

type Controller struct {
	PriceService   services.PriceServiceI
	Logger         *logrus.Logger
	SchedulerMutex sync.Mutex
	Schedulers     map[string]*scheduler.ScheduledTask
}

func NewController(db *gorm.DB, logger *logrus.Logger) *Controller {
	priceService := services.NewPriceService(
		db,
		repositories.NewPriceRepository(db),
		repositories.NewInstrumentRepository(db),
	)
	return &Controller{
		PriceService:   priceService,
		Logger:         logger,
		SchedulerMutex: sync.Mutex{},
		Schedulers:     map[string]*scheduler.ScheduledTask{},
	}
}

func (c *Controller) GetSchedulers() map[string]*scheduler.ScheduledTask {
	c.SchedulerMutex.Lock()
	defer c.SchedulerMutex.Unlock()

	schedulers := make(map[string]*scheduler.ScheduledTask, len(c.Schedulers))
	for name, task := range c.Schedulers {
		schedulers[name] = task
	}
	return schedulers
}

// ScheduleMerge (re)schedules the staged price merge on cronSpec.
func (c *Controller) ScheduleMerge(cronSpec string) error {
	return c.schedule(mergeTask, cronSpec, func(ctx context.Context) error {
		_, err := c.PriceService.MergeStagedPrices(ctx)
		return err
	})
}

func (c *Controller) schedule(name, cronSpec string, taskFunc func(ctx context.Context) error) error {
	c.SchedulerMutex.Lock()
	defer c.SchedulerMutex.Unlock()

	if existingTask, exists := c.Schedulers[name]; exists {
		existingTask.Cancel()
		delete(c.Schedulers, name)
	}

	newTask, err := scheduler.NewScheduledTask(cronSpec, func() {
		ctx := utils.WithLogger(context.Background(), c.Logger)
		if err := taskFunc(ctx); err != nil {
			c.Logger.WithError(err).WithField("task", name).Error("scheduled task failed")
		}
	})
	if err != nil {
		return err
	}
	c.Schedulers[name] = newTask
	return nil
}

// StopSchedulers cancels every scheduled task.
func (c *Controller) StopSchedulers() {
	c.SchedulerMutex.Lock()
	defer c.SchedulerMutex.Unlock()

	for name, task := range c.Schedulers {
		task.Cancel()
		delete(c.Schedulers, name)
	}
}
