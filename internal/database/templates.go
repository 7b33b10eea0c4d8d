package database

import (
	"log"

	"risk-governance/internal/models"

	"gorm.io/gorm"
)

type subControlSeed struct {
	Dimension   models.Dimension
	Criticality models.Criticality
	Prompt      string
}

type templateSeed struct {
	Code      string
	Version   string
	Name      string
	Category  string
	Objective models.ControlObjective
	Subs      []subControlSeed
}

// Встроенный каталог архетипов контролей. После публикации версия
// неизменяема: правки каталога выпускаются новой версией кода шаблона.
var controlTemplateCatalogue = []templateSeed{
	{
		Code:      "AC-01",
		Version:   "1.0",
		Name:      "Управление доступом к критичным системам",
		Category:  "доступ",
		Objective: models.ObjectiveLikelihood,
		Subs: []subControlSeed{
			{models.DimensionDesign, models.CriticalityCritical, "Утверждена ли матрица доступа для всех критичных систем?"},
			{models.DimensionDesign, models.CriticalityImportant, "Закреплён ли порядок выдачи и отзыва прав во внутреннем регламенте?"},
			{models.DimensionImplementation, models.CriticalityCritical, "Выдаются ли права строго по заявкам с согласованием владельца системы?"},
			{models.DimensionImplementation, models.CriticalityCritical, "Отзываются ли права в день увольнения или перевода сотрудника?"},
			{models.DimensionImplementation, models.CriticalityImportant, "Используется ли многофакторная аутентификация для привилегированных учёток?"},
			{models.DimensionMonitoring, models.CriticalityCritical, "Ведётся ли журнал входов и действий привилегированных пользователей?"},
			{models.DimensionMonitoring, models.CriticalityImportant, "Настроены ли оповещения о входах вне рабочего времени?"},
			{models.DimensionMonitoring, models.CriticalityOptional, "Формируется ли ежемесячный отчёт по неиспользуемым учёткам?"},
			{models.DimensionEvaluation, models.CriticalityCritical, "Проводится ли квартальная ресертификация прав доступа?"},
			{models.DimensionEvaluation, models.CriticalityImportant, "Фиксируются ли и отрабатываются ли отклонения, выявленные ресертификацией?"},
		},
	},
	{
		Code:      "BC-02",
		Version:   "1.0",
		Name:      "Резервное копирование и восстановление",
		Category:  "непрерывность",
		Objective: models.ObjectiveImpact,
		Subs: []subControlSeed{
			{models.DimensionDesign, models.CriticalityCritical, "Определены ли RPO/RTO для всех критичных систем?"},
			{models.DimensionDesign, models.CriticalityImportant, "Утверждена ли схема хранения копий (локально / вне площадки)?"},
			{models.DimensionImplementation, models.CriticalityCritical, "Выполняется ли резервное копирование по утверждённому расписанию?"},
			{models.DimensionImplementation, models.CriticalityImportant, "Шифруются ли резервные копии при хранении и передаче?"},
			{models.DimensionImplementation, models.CriticalityOptional, "Хранится ли одна копия в изолированном сегменте?"},
			{models.DimensionMonitoring, models.CriticalityCritical, "Контролируются ли сбои заданий копирования с разбором причин?"},
			{models.DimensionMonitoring, models.CriticalityImportant, "Проверяется ли целостность копий автоматически?"},
			{models.DimensionEvaluation, models.CriticalityCritical, "Проводится ли тестовое восстановление не реже раза в полугодие?"},
			{models.DimensionEvaluation, models.CriticalityImportant, "Укладывается ли тестовое восстановление в утверждённый RTO?"},
			{models.DimensionEvaluation, models.CriticalityOptional, "Актуализируется ли план восстановления по итогам тестов?"},
		},
	},
	{
		Code:      "VM-03",
		Version:   "1.0",
		Name:      "Управление уязвимостями",
		Category:  "уязвимости",
		Objective: models.ObjectiveBoth,
		Subs: []subControlSeed{
			{models.DimensionDesign, models.CriticalityCritical, "Утверждены ли сроки устранения уязвимостей по уровням критичности?"},
			{models.DimensionDesign, models.CriticalityOptional, "Покрывает ли регламент сторонние и облачные компоненты?"},
			{models.DimensionImplementation, models.CriticalityCritical, "Сканируется ли весь периметр не реже раза в месяц?"},
			{models.DimensionImplementation, models.CriticalityImportant, "Устраняются ли критичные уязвимости в установленный срок?"},
			{models.DimensionImplementation, models.CriticalityImportant, "Оформляются ли отложенные исправления как принятые отклонения?"},
			{models.DimensionMonitoring, models.CriticalityCritical, "Отслеживается ли доля просроченных уязвимостей по подразделениям?"},
			{models.DimensionMonitoring, models.CriticalityOptional, "Сопоставляются ли находки с данными об эксплуатации в дикой среде?"},
			{models.DimensionEvaluation, models.CriticalityCritical, "Проводится ли ежегодный независимый пентест?"},
			{models.DimensionEvaluation, models.CriticalityImportant, "Разбираются ли результаты пентеста с владельцами систем?"},
			{models.DimensionEvaluation, models.CriticalityOptional, "Пересматриваются ли пороги критичности по итогам инцидентов?"},
		},
	},
}

// SeedControlTemplates загружает встроенный каталог. Идемпотентно:
// пара (код, версия) уникальна, существующие версии не трогаются.
func SeedControlTemplates(db *gorm.DB) {
	for _, t := range controlTemplateCatalogue {
		var count int64
		if err := db.Model(&models.ControlTemplate{}).
			Where("code = ? AND version = ?", t.Code, t.Version).
			Count(&count).Error; err != nil {
			log.Printf("failed to check template %s v%s: %v", t.Code, t.Version, err)
			continue
		}
		if count > 0 {
			continue
		}

		template := models.ControlTemplate{
			Code:      t.Code,
			Version:   t.Version,
			Name:      t.Name,
			Category:  t.Category,
			Objective: t.Objective,
		}
		for i, s := range t.Subs {
			template.SubControls = append(template.SubControls, models.SubControlTemplate{
				Position:    i + 1,
				Dimension:   s.Dimension,
				Criticality: s.Criticality,
				Prompt:      s.Prompt,
			})
		}

		if err := db.Create(&template).Error; err != nil {
			log.Printf("failed to seed template %s v%s: %v", t.Code, t.Version, err)
			continue
		}
		log.Printf("seeded control template %s v%s (%d sub-controls)", t.Code, t.Version, len(t.Subs))
	}
}
